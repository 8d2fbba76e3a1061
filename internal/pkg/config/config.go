// Package config binds the correlation core's tunables to viper, the way
// internal/pkg/voip/config.go binds VoIP processing tunables: a typed
// struct hydrated from viper on demand, with defaults set once behind a
// sync.Once. It also exposes the two named settings the spec's storage
// layer reads directly (call-list.sort-field, call-list.sort-order) through
// a small SettingLookup interface, so the correlator package never imports
// viper itself.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spf13/viper"
)

const (
	SettingSortField = "call-list.sort-field"
	SettingSortOrder = "call-list.sort-order"
)

// Storage modes for CaptureOptions.StorageMode: whether a Message retains
// the raw payload bytes of the Packet that produced it.
const (
	StorageModeFull        = 0 // retain Packet.Payload on every Message
	StorageModeHeadersOnly = 1 // strip Packet.Payload once retransmission hashing has consumed it
)

// CaptureOptions bounds how many calls are retained and how RTP is admitted.
type CaptureOptions struct {
	Limit       int  `mapstructure:"limit" yaml:"limit"`               // 0 = unbounded, rotation disabled
	Rotate      bool `mapstructure:"rotate" yaml:"rotate"`             // not read by the correlator: eviction is driven by Limit alone
	RTPCapture  bool `mapstructure:"rtp_capture" yaml:"rtp_capture"`   // false skips RTP ingress entirely
	StorageMode int  `mapstructure:"storage_mode" yaml:"storage_mode"` // whether raw packet payload is retained per Message
}

// MatchOptions configures the ingress match expression and admission rules.
type MatchOptions struct {
	Expr     string `mapstructure:"mexpr" yaml:"mexpr"`
	Invert   bool   `mapstructure:"minvert" yaml:"minvert"`
	Case     bool   `mapstructure:"micase" yaml:"micase"`
	Invite   bool   `mapstructure:"invite" yaml:"invite"`
	Complete bool   `mapstructure:"complete" yaml:"complete"`
}

// SortOptions configures the display order of the call list.
type SortOptions struct {
	By  string `mapstructure:"by" yaml:"by"` // one of the SortField* names in the correlator package
	Asc bool   `mapstructure:"asc" yaml:"asc"`
}

var defaultsOnce sync.Once

func setDefaults() {
	viper.SetDefault("capture.limit", 0)
	viper.SetDefault("capture.rotate", true)
	viper.SetDefault("capture.rtp_capture", true)
	viper.SetDefault("capture.storage_mode", 0)
	viper.SetDefault("match.mexpr", "")
	viper.SetDefault("match.minvert", false)
	viper.SetDefault("match.micase", false)
	viper.SetDefault("match.invite", false)
	viper.SetDefault("match.complete", false)
	viper.SetDefault(SettingSortField, "call-index")
	viper.SetDefault(SettingSortOrder, "asc")
}

// Capture returns capture options hydrated from viper.
func Capture() CaptureOptions {
	defaultsOnce.Do(setDefaults)
	return CaptureOptions{
		Limit:       viper.GetInt("capture.limit"),
		Rotate:      viper.GetBool("capture.rotate"),
		RTPCapture:  viper.GetBool("capture.rtp_capture"),
		StorageMode: viper.GetInt("capture.storage_mode"),
	}
}

// Match returns match options hydrated from viper.
func Match() MatchOptions {
	defaultsOnce.Do(setDefaults)
	return MatchOptions{
		Expr:     viper.GetString("match.mexpr"),
		Invert:   viper.GetBool("match.minvert"),
		Case:     viper.GetBool("match.micase"),
		Invite:   viper.GetBool("match.invite"),
		Complete: viper.GetBool("match.complete"),
	}
}

// Sort returns sort options hydrated from the two named settings via
// SettingLookup semantics, falling back to call-index/ascending when unset.
func Sort() SortOptions {
	defaultsOnce.Do(setDefaults)
	return SortOptions{
		By:  viper.GetString(SettingSortField),
		Asc: viper.GetString(SettingSortOrder) != "desc",
	}
}

// SettingLookup is the string->string setting collaborator the storage
// layer is specified against (spec.md §6). A *viper.Viper (via Settings)
// or a fixed map both satisfy it.
type SettingLookup interface {
	Get(key string) (string, bool)
}

// Settings adapts viper's global registry to SettingLookup.
type Settings struct{}

func (Settings) Get(key string) (string, bool) {
	if !viper.IsSet(key) {
		return "", false
	}
	return viper.GetString(key), true
}

// FileOverrides is the shape of an optional YAML config file applied on top
// of viper's defaults, grounded on internal/pkg/filtering/parser.go's
// ParseFile (read-if-exists, yaml.Unmarshal into a typed struct).
type FileOverrides struct {
	Capture CaptureOptions `yaml:"capture"`
	Match   MatchOptions   `yaml:"match"`
	Sort    SortOptions    `yaml:"sort"`
}

// LoadFile reads a YAML override file and applies it to viper. A missing
// file is not an error - it just means "use defaults".
func LoadFile(path string) (*FileOverrides, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var overrides FileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}

	defaultsOnce.Do(setDefaults)
	viper.Set("capture.limit", overrides.Capture.Limit)
	viper.Set("capture.rotate", overrides.Capture.Rotate)
	viper.Set("capture.rtp_capture", overrides.Capture.RTPCapture)
	viper.Set("capture.storage_mode", overrides.Capture.StorageMode)
	viper.Set("match.mexpr", overrides.Match.Expr)
	viper.Set("match.minvert", overrides.Match.Invert)
	viper.Set("match.micase", overrides.Match.Case)
	viper.Set("match.invite", overrides.Match.Invite)
	viper.Set("match.complete", overrides.Match.Complete)
	if overrides.Sort.By != "" {
		viper.Set(SettingSortField, overrides.Sort.By)
	}
	if overrides.Sort.Asc {
		viper.Set(SettingSortOrder, "asc")
	} else {
		viper.Set(SettingSortOrder, "desc")
	}

	return &overrides, nil
}
