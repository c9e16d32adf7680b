// Package config loads decoder parameters from a YAML file so applications
// can tune thresholds without recompiling
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	visionpost "github.com/visionpost/go-visionpost"
	"github.com/visionpost/go-visionpost/postprocess"
)

// DetectConfig holds the settings for the anchor/grid detection decoder
type DetectConfig struct {
	// Classes is the number of object classes the model was trained with
	Classes int `yaml:"classes"`
	// NMSThreshold is the IoU cutoff for non-max suppression
	NMSThreshold float32 `yaml:"nmsThreshold"`
	// MaxObjects caps the number of detections returned per image
	MaxObjects int `yaml:"maxObjects"`
	// Activate applies sigmoid to raw scores for unactivated exports
	Activate bool `yaml:"activate"`
	// Confidences are the per class confidence thresholds, repeated for
	// remaining classes when fewer values than classes are given
	Confidences []float32 `yaml:"confidences"`
}

// SegmentConfig holds the settings for the binary segmentation decoder
type SegmentConfig struct {
	// BinaryThresh is the pixel foreground cutoff
	BinaryThresh float32 `yaml:"binaryThresh"`
	// UnclipRatio is the polygon dilation scale
	UnclipRatio float32 `yaml:"unclipRatio"`
	// MinWidth is the bounding box width rejection floor
	MinWidth float32 `yaml:"minWidth"`
	// MinHeight is the bounding box height rejection floor
	MinHeight float32 `yaml:"minHeight"`
	// Resample is the polygon vertex count after refinement
	Resample int `yaml:"resample"`
	// Interpolation is the mask upscale filter, nearest or bilinear
	Interpolation string `yaml:"interpolation"`
	// Confidences holds the class-0 acceptance threshold
	Confidences []float32 `yaml:"confidences"`
}

// Config is the root decoder configuration
type Config struct {
	// Workers sets the decode pool size, zero uses all CPU cores
	Workers int           `yaml:"workers"`
	Detect  DetectConfig  `yaml:"detect"`
	Segment SegmentConfig `yaml:"segment"`
}

// Default returns a Config populated with the decoder defaults
func Default() Config {

	db := postprocess.DBDefaultParams()
	det := postprocess.YOLOCOCOParams()

	return Config{
		Detect: DetectConfig{
			Classes:      det.ObjectClassNum,
			NMSThreshold: det.NMSThreshold,
			MaxObjects:   det.MaxObjectNumber,
			Confidences:  []float32{postprocess.DefaultConf},
		},
		Segment: SegmentConfig{
			BinaryThresh:  db.BinaryThresh,
			UnclipRatio:   db.UnclipRatio,
			MinWidth:      db.MinWidth,
			MinHeight:     db.MinHeight,
			Resample:      db.ResampleVertices,
			Interpolation: "bilinear",
			Confidences:   []float32{0.3},
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result, failing fast on out of range values
func Load(path string) (*Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every option is within its accepted range
func (c *Config) Validate() error {

	if c.Workers < 0 {
		return fmt.Errorf("workers %d is negative", c.Workers)
	}

	if c.Detect.Classes < 1 {
		return fmt.Errorf("detect classes %d below 1", c.Detect.Classes)
	}

	if c.Detect.NMSThreshold <= 0 || c.Detect.NMSThreshold > 1 {
		return fmt.Errorf("detect nmsThreshold %f outside (0,1]",
			c.Detect.NMSThreshold)
	}

	if c.Detect.MaxObjects < 1 {
		return fmt.Errorf("detect maxObjects %d below 1", c.Detect.MaxObjects)
	}

	for _, conf := range c.Detect.Confidences {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("detect confidence %f outside [0,1]", conf)
		}
	}

	if c.Segment.BinaryThresh < 0 || c.Segment.BinaryThresh >= 1 {
		return fmt.Errorf("segment binaryThresh %f outside [0,1)",
			c.Segment.BinaryThresh)
	}

	if c.Segment.UnclipRatio < 0 {
		return fmt.Errorf("segment unclipRatio %f is negative",
			c.Segment.UnclipRatio)
	}

	if c.Segment.MinWidth < 0 || c.Segment.MinHeight < 0 {
		return fmt.Errorf("segment minimum box size %fx%f is negative",
			c.Segment.MinWidth, c.Segment.MinHeight)
	}

	if c.Segment.Resample < 3 {
		return fmt.Errorf("segment resample %d below 3 vertices",
			c.Segment.Resample)
	}

	if _, err := c.interpolation(); err != nil {
		return err
	}

	for _, conf := range c.Segment.Confidences {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("segment confidence %f outside [0,1]", conf)
		}
	}

	return nil
}

// interpolation maps the config string to the decoder constant
func (c *Config) interpolation() (postprocess.Interpolation, error) {

	switch c.Segment.Interpolation {
	case "", "bilinear":
		return postprocess.InterpBilinear, nil
	case "nearest":
		return postprocess.InterpNearest, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", c.Segment.Interpolation)
	}
}

// Pool builds the decode worker pool the config describes
func (c *Config) Pool() *visionpost.Pool {
	return visionpost.NewPool(c.Workers)
}

// YOLOParams builds the detection decoder parameters
func (c *Config) YOLOParams() postprocess.YOLOParams {
	return postprocess.YOLOParams{
		ObjectClassNum:  c.Detect.Classes,
		NMSThreshold:    c.Detect.NMSThreshold,
		MaxObjectNumber: c.Detect.MaxObjects,
		Activate:        c.Detect.Activate,
	}
}

// DBParams builds the segmentation decoder parameters
func (c *Config) DBParams() (postprocess.DBParams, error) {

	interp, err := c.interpolation()

	if err != nil {
		return postprocess.DBParams{}, err
	}

	p := postprocess.DBDefaultParams()
	p.BinaryThresh = c.Segment.BinaryThresh
	p.UnclipRatio = c.Segment.UnclipRatio
	p.MinWidth = c.Segment.MinWidth
	p.MinHeight = c.Segment.MinHeight
	p.ResampleVertices = c.Segment.Resample
	p.Interpolation = interp

	return p, nil
}

// DetectConfTable builds the per class threshold table for detection
func (c *Config) DetectConfTable() postprocess.ConfTable {
	return postprocess.NewConfTable(c.Detect.Confidences, c.Detect.Classes)
}

// SegmentConfTable builds the threshold table for segmentation
func (c *Config) SegmentConfTable() postprocess.ConfTable {
	return postprocess.NewConfTable(c.Segment.Confidences, 1)
}
