package main

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers       = 4
	defaultMirrorTimeout = 10 * time.Minute
	defaultAPIURL        = "https://api.github.com"
)

// Config is the optional config file content, flags take precedence over
// values set in the file
type Config struct {
	// Workers is the number of mirrors running concurrently
	Workers int `yaml:"workers"`

	// MirrorTimeout represents the total time allowed for a single mirror
	MirrorTimeout time.Duration `yaml:"mirror_timeout"`

	// APIURL of GitHub API, set for GitHub Enterprise
	APIURL string `yaml:"api_url"`

	// SkipRepos and SkipGists exclude the kind from mirroring
	SkipRepos bool `yaml:"skip_repos"`
	SkipGists bool `yaml:"skip_gists"`

	// Auth config used for API requests and https clones
	Auth Auth `yaml:"auth"`
}

type Auth struct {
	// Token is a personal access token
	Token string `yaml:"token"`

	// github app details used to mint installation tokens
	GithubAppID             string `yaml:"github_app_id"`
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key_path"`
}

// loadConfig reads config file if given and applies flag overrides and defaults
func loadConfig(c *cli.Command) (*Config, error) {
	conf := &Config{}

	if path := c.String("config"); path != "" {
		var err error
		conf, err = parseConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to parse config file err:%w", err)
		}
	}

	if c.IsSet("workers") {
		conf.Workers = int(c.Int("workers"))
	}
	if c.IsSet("mirror-timeout") {
		conf.MirrorTimeout = c.Duration("mirror-timeout")
	}
	if c.IsSet("api-url") {
		conf.APIURL = c.String("api-url")
	}
	if token := c.String("token"); token != "" {
		conf.Auth.Token = token
	}

	applyDefaults(conf)

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func applyDefaults(conf *Config) {
	if conf.Workers == 0 {
		conf.Workers = defaultWorkers
	}

	if conf.MirrorTimeout == 0 {
		conf.MirrorTimeout = defaultMirrorTimeout
	}

	if conf.APIURL == "" {
		conf.APIURL = defaultAPIURL
	}
}

func (conf *Config) validate() error {
	if conf.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", conf.Workers)
	}

	if conf.MirrorTimeout < time.Second {
		return fmt.Errorf("provided mirror timeout is too short (%s), must be >= %s", conf.MirrorTimeout, time.Second)
	}

	if conf.SkipRepos && conf.SkipGists {
		return fmt.Errorf("both repos and gists are skipped, nothing to mirror")
	}

	// if any of the github app config is set all should be set
	a := conf.Auth
	if a.GithubAppID != "" || a.GithubAppInstallationID != "" || a.GithubAppPrivateKeyPath != "" {
		if a.GithubAppID == "" || a.GithubAppInstallationID == "" || a.GithubAppPrivateKeyPath == "" {
			return fmt.Errorf("all github app auth config (github_app_id, github_app_installation_id, github_app_private_key_path) must be set")
		}
	}

	return nil
}

func parseConfigFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = validateConfig(yamlFile)
	if err != nil {
		return nil, err
	}

	conf := &Config{}
	err = yaml.Unmarshal(yamlFile, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}

func validateConfig(yamlData []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	// empty file
	if raw == nil {
		return nil
	}

	if key := findUnexpectedKey(raw, getAllowedKeys(Config{})); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	if _, ok := raw["auth"]; !ok {
		return nil
	}

	authMap, ok := raw["auth"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("auth config section is not valid")
	}
	if key := findUnexpectedKey(authMap, getAllowedKeys(Auth{})); key != "" {
		return fmt.Errorf("unexpected key: .auth.%v", key)
	}

	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct
func getAllowedKeys(config interface{}) []string {
	var allowedKeys []string
	typ := reflect.TypeOf(config)

	for i := 0; i < typ.NumField(); i++ {
		yamlTag := typ.Field(i).Tag.Get("yaml")
		if yamlTag != "" {
			allowedKeys = append(allowedKeys, yamlTag)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw map[string]interface{}, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}
