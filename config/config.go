package config

import (
	"fmt"
	"os"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EngineAll corre todos los modelos registrados.
const EngineAll = "all"

// requiredKeys son las keys planas del contrato que deben estar presentes.
var requiredKeys = []string{"option_type", "barrier_type", "position", "S0", "K", "T", "r", "sigma", "H"}

// Config es la configuración completa del pricer.
type Config struct {
	Contract ContractConfig `yaml:",inline"`
	Model    ModelConfig    `yaml:"model"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ContractConfig son los parámetros del contrato y del mercado, como keys planas.
type ContractConfig struct {
	OptionType  string  `yaml:"option_type"`  // call | put
	BarrierType string  `yaml:"barrier_type"` // "down and out", "up-and-in", ...
	Position    string  `yaml:"position"`     // long | short
	Spot        float64 `yaml:"S0"`
	Strike      float64 `yaml:"K"`
	Maturity    float64 `yaml:"T"`
	Rate        float64 `yaml:"r"`
	Sigma       float64 `yaml:"sigma"`
	Barrier     float64 `yaml:"H"`
	Premium     float64 `yaml:"premium"`
}

// ModelConfig controla qué modelos se corren y con qué resolución.
type ModelConfig struct {
	Engine    string  `yaml:"engine"` // full | condensed | amm | all
	Steps     int     `yaml:"steps"`  // N de los trinomiales
	Levels    int     `yaml:"levels"` // M del AMM
	Lambda    float64 `yaml:"lambda"` // λ del lattice grueso del AMM
	SweepFrom int     `yaml:"sweep_from"`
	SweepTo   int     `yaml:"sweep_to"`
	Workers   int     `yaml:"workers"` // goroutines del barrido (0 = NumCPU)
}

// StorageConfig controla dónde se persisten los barridos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodifica y valida la configuración YAML.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %v: %w", err, domain.ErrInvalidConfig)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("config.Parse: missing required key %q: %w", key, domain.ErrInvalidConfig)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: decode: %v: %w", err, domain.ErrInvalidConfig)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba la sección de modelos y que el contrato sea construible.
func (c *Config) Validate() error {
	switch c.Model.Engine {
	case "full", "condensed", "amm", EngineAll:
	default:
		return fmt.Errorf("config.Validate: unknown engine %q: %w", c.Model.Engine, domain.ErrInvalidConfig)
	}
	if c.Model.Steps < 1 {
		return fmt.Errorf("config.Validate: steps %d must be >= 1: %w", c.Model.Steps, domain.ErrInvalidConfig)
	}
	if c.Model.Steps > domain.MaxGridSteps {
		return fmt.Errorf("config.Validate: steps %d exceeds %d: %w", c.Model.Steps, domain.MaxGridSteps, domain.ErrTooManySteps)
	}
	if c.Model.Levels < 0 {
		return fmt.Errorf("config.Validate: levels %d must be >= 0: %w", c.Model.Levels, domain.ErrInvalidConfig)
	}
	if !(c.Model.Lambda > 0) {
		return fmt.Errorf("config.Validate: lambda %v must be > 0: %w", c.Model.Lambda, domain.ErrInvalidConfig)
	}
	if c.Model.SweepTo < c.Model.SweepFrom {
		return fmt.Errorf("config.Validate: sweep range [%d, %d] is empty: %w",
			c.Model.SweepFrom, c.Model.SweepTo, domain.ErrInvalidConfig)
	}
	if _, _, err := c.Contract.Build(); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// Build construye el contrato y el mercado del dominio. Falla con
// domain.ErrInvalidConfig si algún parámetro está fuera de dominio o si la
// barrera está del lado equivocado del spot.
func (c ContractConfig) Build() (domain.Option, domain.Market, error) {
	optType, err := domain.ParseOptionType(c.OptionType)
	if err != nil {
		return domain.Option{}, domain.Market{}, err
	}
	barrierType, err := domain.ParseBarrierType(c.BarrierType)
	if err != nil {
		return domain.Option{}, domain.Market{}, err
	}
	position, err := domain.ParsePositionType(c.Position)
	if err != nil {
		return domain.Option{}, domain.Market{}, err
	}

	opt := domain.Option{
		Type:        optType,
		Strike:      c.Strike,
		Maturity:    c.Maturity,
		Barrier:     c.Barrier,
		BarrierType: barrierType,
		Position:    position,
		Premium:     c.Premium,
	}
	mkt := domain.Market{Spot: c.Spot, Rate: c.Rate, Sigma: c.Sigma}

	if err := opt.Validate(); err != nil {
		return domain.Option{}, domain.Market{}, err
	}
	if err := mkt.Validate(); err != nil {
		return domain.Option{}, domain.Market{}, err
	}
	if err := opt.CheckBarrierSide(mkt.Spot); err != nil {
		return domain.Option{}, domain.Market{}, err
	}
	return opt, mkt, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PRICER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores opcionales tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Model.Engine == "" {
		cfg.Model.Engine = EngineAll
	}
	if cfg.Model.Steps == 0 {
		cfg.Model.Steps = 100
	}
	if cfg.Model.Lambda == 0 {
		cfg.Model.Lambda = 3
	}
	if cfg.Model.SweepFrom == 0 && cfg.Model.SweepTo == 0 {
		cfg.Model.SweepFrom = 1
		cfg.Model.SweepTo = 200
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "barrierlattice.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
