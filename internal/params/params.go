// Package params declares the named parameters and secrets used by the
// functions and resolves them once per process.
package params

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/secretsclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/spf13/viper"
)

// StringParam is a string parameter resolved from the environment or config file.
type StringParam struct {
	Name        string
	Default     string
	Description string
}

// IntParam is an integer parameter resolved from the environment or config file.
type IntParam struct {
	Name        string
	Default     int
	Description string
}

// SecretParam is resolved from Secrets Manager, falling back to the environment.
type SecretParam struct {
	Name        string
	Description string
}

// Declarations is the full set of parameters a process resolves at cold start.
type Declarations struct {
	Strings []StringParam
	Ints    []IntParam
	Secrets []SecretParam
}

// Merge returns the union of d and other. Later declarations of a name win.
func (d Declarations) Merge(other Declarations) Declarations {
	return Declarations{
		Strings: append(append([]StringParam{}, d.Strings...), other.Strings...),
		Ints:    append(append([]IntParam{}, d.Ints...), other.Ints...),
		Secrets: append(append([]SecretParam{}, d.Secrets...), other.Secrets...),
	}
}

const (
	LoaderConfigNilErrMsg = "loader config is nil"
)

// LoaderConfig configures a Loader. Secrets may be nil, in which case
// secrets are read from the environment only.
type LoaderConfig struct {
	Secrets      secretsclient.SecretsClient
	SecretPrefix string
	// ConfigFile is an optional yaml/json file layered under the environment.
	ConfigFile string
	Logger     logger.Logger
}

// Loader resolves Declarations into Values.
type Loader struct {
	v       *viper.Viper
	secrets secretsclient.SecretsClient
	prefix  string
	log     logger.Logger
}

func NewLoader(cfg *LoaderConfig) (*Loader, error) {
	if cfg == nil {
		return nil, errors.New(LoaderConfigNilErrMsg)
	}
	v := viper.New()
	v.AutomaticEnv()
	if cfg.ConfigFile != "" {
		v.SetConfigFile(cfg.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read params file %s: %w", cfg.ConfigFile, err)
		}
	}
	return &Loader{
		v:       v,
		secrets: cfg.Secrets,
		prefix:  cfg.SecretPrefix,
		log:     logger.OrDefault(cfg.Logger),
	}, nil
}

// Load resolves every declared parameter. Empty values are kept; handlers
// report MissingConfiguration when they need one.
func (l *Loader) Load(ctx context.Context, decl Declarations) (*Values, error) {
	vals := &Values{
		strings: make(map[string]string),
		ints:    make(map[string]int),
	}
	for _, p := range decl.Strings {
		l.v.SetDefault(p.Name, p.Default)
		vals.strings[p.Name] = strings.TrimSpace(l.v.GetString(p.Name))
	}
	for _, p := range decl.Ints {
		l.v.SetDefault(p.Name, p.Default)
		raw := l.v.GetString(p.Name)
		n := l.v.GetInt(p.Name)
		if raw != "" && n == 0 && raw != "0" {
			return nil, fmt.Errorf("param %s: %q is not an integer", p.Name, raw)
		}
		vals.ints[p.Name] = n
	}
	for _, p := range decl.Secrets {
		s, err := l.secret(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		vals.strings[p.Name] = s
	}
	l.log.Debug("resolved %d string, %d int and %d secret params", len(decl.Strings), len(decl.Ints), len(decl.Secrets))
	return vals, nil
}

func (l *Loader) secret(ctx context.Context, name string) (string, error) {
	if l.secrets != nil {
		out, err := l.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(l.prefix + name),
		})
		if err == nil {
			return strings.TrimSpace(aws.ToString(out.SecretString)), nil
		}
		var notFound *smtypes.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("failed to resolve secret %s: %w", name, err)
		}
		l.log.Debug("secret %s not found in secrets manager, using environment", l.prefix+name)
	}
	return strings.TrimSpace(os.Getenv(name)), nil
}

// Values is the read-only snapshot produced by Load.
type Values struct {
	strings map[string]string
	ints    map[string]int
}

// NewValues builds a snapshot directly. Used by tests and local runs.
func NewValues(strs map[string]string, ints map[string]int) *Values {
	v := &Values{strings: map[string]string{}, ints: map[string]int{}}
	for k, s := range strs {
		v.strings[k] = s
	}
	for k, n := range ints {
		v.ints[k] = n
	}
	return v
}

// String returns the resolved value of a string or secret param, or "".
func (v *Values) String(name string) string {
	if v == nil {
		return ""
	}
	return v.strings[name]
}

// Int returns the resolved value of an int param, or 0.
func (v *Values) Int(name string) int {
	if v == nil {
		return 0
	}
	return v.ints[name]
}

// Require returns the named value or a MissingConfiguration when it is empty.
func (v *Values) Require(name string) (string, error) {
	s := v.String(name)
	if s == "" {
		return "", fnerr.NotConfigured(name)
	}
	return s, nil
}
