// Package config 运行配置: 默认值 → YAML 文件 → 环境变量
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/renjie/prism-co2/pkg/adapters/factory"
	"github.com/renjie/prism-co2/pkg/adapters/ingest"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/physics"
	"github.com/renjie/prism-co2/pkg/core/services"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PRISM_CO2_"

// Config 应用配置
type Config struct {
	Prefix   string         `yaml:"prefix"` // 导出文件名前缀 (船名)
	Log      LogConfig      `yaml:"log"`
	Input    InputConfig    `yaml:"input"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // 为空时只写 stdout
}

// InputConfig 输入文件
type InputConfig struct {
	GoLogs     []string `yaml:"go_logs"`
	Ferrybox   []string `yaml:"ferrybox"`
	References string   `yaml:"references"`
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	Standards     []string             `yaml:"standards"` // 为空时自动发现
	MaxBridge     time.Duration        `yaml:"max_bridge"`
	JoinTolerance time.Duration        `yaml:"join_tolerance"`
	Calibration   CalibrationSettings  `yaml:"calibration"`
	Derivation    DerivationSettings   `yaml:"derivation"`
	Checks        []domain.CheckConfig `yaml:"checks"`
}

// CalibrationSettings 校准阈值
type CalibrationSettings struct {
	CalibrationThreshold float64   `yaml:"calibration_threshold"`
	StandardThreshold    float64   `yaml:"standard_threshold"`
	UnstableStandard     string    `yaml:"unstable_standard"`
	UnstableMinCount     int       `yaml:"unstable_min_count"`
	UnstableBefore       time.Time `yaml:"unstable_before"`
}

// DerivationSettings 派生参数
type DerivationSettings struct {
	QFFMeasuredBefore time.Time `yaml:"qff_measured_before"`
	StationHeight     float64   `yaml:"station_height"`
}

// OutputConfig 导出配置
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	TSV     bool   `yaml:"tsv"`
	Parquet bool   `yaml:"parquet"`
}

// StorageConfig sqlite 持久层
type StorageConfig struct {
	SQLitePath   string `yaml:"sqlite_path"` // 为空时不持久化
	StoreRecords bool   `yaml:"store_records"`
}

// KafkaConfig 结果发布
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // 为空时不发布
	Topic   string   `yaml:"topic"`
}

// HTTPConfig 查询 API
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default 返回默认配置
func Default() Config {
	cal := services.DefaultCalibrationConfig()
	der := services.DefaultDerivationConfig()
	return Config{
		Prefix: "Tavastland",
		Log:    LogConfig{Level: "info"},
		Pipeline: PipelineConfig{
			MaxBridge:     services.DefaultMaxBridge,
			JoinTolerance: ingest.DefaultJoinTolerance,
			Calibration: CalibrationSettings{
				CalibrationThreshold: cal.CalibrationThreshold,
				StandardThreshold:    cal.StandardThreshold,
				UnstableStandard:     cal.UnstableStandard,
				UnstableMinCount:     cal.UnstableMinCount,
				UnstableBefore:       cal.UnstableBefore,
			},
			Derivation: DerivationSettings{
				QFFMeasuredBefore: der.QFFMeasuredBefore,
				StationHeight:     physics.StationHeight,
			},
			Checks: factory.DefaultChecks(),
		},
		Output:  OutputConfig{Dir: "exported_data", TSV: true},
		Storage: StorageConfig{StoreRecords: true},
		Kafka:   KafkaConfig{Topic: "co2.fco2"},
		HTTP:    HTTPConfig{Addr: ":8080"},
	}
}

// Load 读取配置: path 为空时只使用默认值和环境变量
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.FromEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode 覆盖文件中出现的字段; checks 出现时整体替换默认检查链
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	next := *c
	next.Pipeline.Checks = nil
	if err := dec.Decode(&next); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if next.Pipeline.Checks == nil {
		next.Pipeline.Checks = c.Pipeline.Checks
	}
	*c = next
	return nil
}

// FromEnv 应用 PRISM_CO2_* 环境变量
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if v, ok := get("PREFIX"); ok {
		c.Prefix = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := get("REFERENCES"); ok {
		c.Input.References = v
	}
	if v, ok := get("STANDARDS"); ok {
		c.Pipeline.Standards = splitAndTrim(v)
	}
	if v, ok := get("OUTPUT_DIR"); ok {
		c.Output.Dir = v
	}
	if v, ok := get("SQLITE_PATH"); ok {
		c.Storage.SQLitePath = v
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitAndTrim(v)
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.Kafka.Topic = v
	}
	if v, ok := get("HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v, ok := get("MAX_BRIDGE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMAX_BRIDGE: %w", EnvPrefix, err)
		}
		c.Pipeline.MaxBridge = d
	}
	if v, ok := get("CALIBRATION_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sCALIBRATION_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Pipeline.Calibration.CalibrationThreshold = f
	}
	if v, ok := get("STANDARD_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSTANDARD_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Pipeline.Calibration.StandardThreshold = f
	}
	return nil
}

// Validate 检查配置一致性; 检查链通过 CheckFactory 预构建一次
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.MaxBridge <= 0 {
		errs = append(errs, errors.New("pipeline.max_bridge must be positive"))
	}
	if c.Pipeline.JoinTolerance < 0 {
		errs = append(errs, errors.New("pipeline.join_tolerance must not be negative"))
	}
	if c.Pipeline.Calibration.CalibrationThreshold <= 0 || c.Pipeline.Calibration.StandardThreshold <= 0 {
		errs = append(errs, errors.New("pipeline.calibration thresholds must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if _, err := factory.GetCheckFactory().CreateChecks(c.Pipeline.Checks); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.checks: %w", err))
	}
	return errors.Join(errs...)
}

// Calibration 转换为校准引擎参数
func (c Config) Calibration() services.CalibrationConfig {
	s := c.Pipeline.Calibration
	return services.CalibrationConfig{
		CalibrationThreshold: s.CalibrationThreshold,
		StandardThreshold:    s.StandardThreshold,
		UnstableStandard:     s.UnstableStandard,
		UnstableMinCount:     s.UnstableMinCount,
		UnstableBefore:       s.UnstableBefore,
	}
}

// Derivation 转换为派生链参数 (门限使用默认的严格版本)
func (c Config) Derivation() services.DerivationConfig {
	d := services.DefaultDerivationConfig()
	d.QFFMeasuredBefore = c.Pipeline.Derivation.QFFMeasuredBefore
	d.StationHeight = c.Pipeline.Derivation.StationHeight
	return d
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
