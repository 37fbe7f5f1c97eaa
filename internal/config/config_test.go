package config_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/envpool/internal/config"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("fills sane pool defaults", func() {
			cfg := config.DefaultConfig()
			Expect(cfg.Model).To(Equal("cartpole"))
			Expect(cfg.NumEnvs).To(BeNumerically(">=", 1))
			Expect(cfg.NumWorkers).To(BeNumerically(">=", 1))
			Expect(cfg.Dt).To(BeNumerically(">", 0))
			Expect(cfg.StepTimeoutMs).To(BeNumerically(">", 0))
		})
	})

	Describe("Save and Load", func() {
		It("round-trips through yaml", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "pool.yaml")

			cfg := config.DefaultConfig()
			cfg.NumEnvs = 16
			cfg.Model = "pendulum"
			cfg.Params = map[string]float64{"damping": 0.2}

			Expect(config.Save(path, cfg)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.NumEnvs).To(Equal(16))
			Expect(loaded.Model).To(Equal("pendulum"))
			Expect(loaded.Params).To(HaveKeyWithValue("damping", 0.2))
		})

		It("fails on a missing file", func() {
			_, err := config.Load("/nonexistent/pool.yaml")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("PoolOptions", func() {
		It("maps fields onto orchestrator options", func() {
			cfg := config.DefaultConfig()
			cfg.NumEnvs = 8
			cfg.NumWorkers = 4
			cfg.Horizon = 100
			cfg.StepTimeoutMs = 250
			cfg.Reward = "upright"

			opts := cfg.PoolOptions()
			Expect(opts.NumEnvs).To(Equal(8))
			Expect(opts.NumWorkers).To(Equal(4))
			Expect(opts.Horizon).To(Equal(100))
			Expect(opts.StepTimeout).To(Equal(250 * time.Millisecond))
			Expect(string(opts.DefaultReward)).To(Equal("upright"))
			Expect(opts.DefaultConfig.Model).To(Equal(cfg.Model))
		})
	})

	Describe("Presets", func() {
		It("finds known presets", func() {
			cfg := config.GetPreset("cartpole", "small")
			Expect(cfg).NotTo(BeNil())
			Expect(cfg.NumEnvs).To(Equal(4))
		})

		It("returns nil for unknown presets", func() {
			Expect(config.GetPreset("cartpole", "nonexistent")).To(BeNil())
			Expect(config.GetPreset("nonexistent", "small")).To(BeNil())
		})

		It("lists presets per model", func() {
			Expect(config.ListPresets("cartpole")).NotTo(BeEmpty())
			Expect(config.ListPresets("nonexistent")).To(BeNil())
		})
	})
})
