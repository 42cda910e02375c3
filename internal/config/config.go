// Package config loads the flat backend settings the metascan CLI hands to
// connector factories. Settings come from environment variables, optionally
// layered under a YAML file, one key space shared by every backend.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// settingEnv maps each flat setting key to its environment variable.
var settingEnv = map[string]string{
	// s3
	"aws_access_key_id":     "AWS_ACCESS_KEY_ID",
	"aws_secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"region":                "AWS_REGION",
	"bucket":                "S3_BUCKET",
	"endpoint":              "S3_ENDPOINT",
	"force_path_style":      "S3_FORCE_PATH_STYLE",
	"fetch_object_details":  "S3_FETCH_OBJECT_DETAILS",
	"skip_object_tags":      "S3_SKIP_OBJECT_TAGS",

	// azure_blob
	"connection_string":     "AZURE_CONNECTION_STRING",
	"container":             "AZURE_CONTAINER",
	"azure_subscription_id": "AZURE_SUBSCRIPTION_ID",
	"azure_tenant_id":       "AZURE_TENANT_ID",
	"azure_client_id":       "AZURE_CLIENT_ID",
	"azure_client_secret":   "AZURE_CLIENT_SECRET",
	"azure_resource_group":  "AZURE_RESOURCE_GROUP",
	"azure_account_name":    "AZURE_ACCOUNT_NAME",

	// sharepoint
	"sharepoint_tenant_id":     "SHAREPOINT_TENANT_ID",
	"sharepoint_client_id":     "SHAREPOINT_CLIENT_ID",
	"sharepoint_client_secret": "SHAREPOINT_CLIENT_SECRET",
	"sharepoint_site_id":       "SHAREPOINT_SITE_ID",
	"sharepoint_site_url":      "SHAREPOINT_SITE_URL",
	"sharepoint_drive_id":      "SHAREPOINT_DRIVE_ID",

	// databricks
	"databricks_host":      "DATABRICKS_HOST",
	"databricks_token":     "DATABRICKS_TOKEN",
	"databricks_catalog":   "DATABRICKS_CATALOG",
	"databricks_schema":    "DATABRICKS_SCHEMA",
	"databricks_volume":    "DATABRICKS_VOLUME",
	"databricks_dbfs_path": "DATABRICKS_DBFS_PATH",
}

// kindSettings lists which flat settings each backend kind consumes.
var kindSettings = map[string][]string{
	"s3": {
		"aws_access_key_id", "aws_secret_access_key", "region", "bucket",
		"endpoint", "force_path_style", "fetch_object_details", "skip_object_tags",
	},
	"azure_blob": {
		"connection_string", "container", "azure_subscription_id",
		"azure_tenant_id", "azure_client_id", "azure_client_secret",
		"azure_resource_group", "azure_account_name",
	},
	"sharepoint": {
		"sharepoint_tenant_id", "sharepoint_client_id", "sharepoint_client_secret",
		"sharepoint_site_id", "sharepoint_site_url", "sharepoint_drive_id",
	},
	"databricks_volume": {
		"databricks_host", "databricks_token", "databricks_catalog",
		"databricks_schema", "databricks_volume",
	},
	"databricks_dbfs": {
		"databricks_host", "databricks_token", "databricks_dbfs_path",
	},
}

// Config holds the loaded flat settings.
type Config struct {
	values map[string]string
}

// Load reads settings from the environment, layered over the YAML file at
// path when one is given. Environment variables win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, env := range settingEnv {
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{values: make(map[string]string, len(settingEnv))}
	for key := range settingEnv {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			cfg.values[key] = val
		}
	}
	return cfg, nil
}

// Get returns one flat setting value, empty when unset.
func (c *Config) Get(key string) string {
	return c.values[key]
}

// Settings returns the flat settings a backend kind consumes. Unknown
// kinds yield an empty map.
func (c *Config) Settings(kind string) map[string]string {
	out := map[string]string{}
	for _, key := range kindSettings[kind] {
		if val, ok := c.values[key]; ok {
			out[key] = val
		}
	}
	return out
}

// EnabledKinds returns the backend kinds the settings are complete enough
// to scan, in a fixed order. A backend with no configuration at all is
// skipped rather than failed.
func (c *Config) EnabledKinds() []string {
	var kinds []string
	if c.Get("aws_access_key_id") != "" || c.Get("bucket") != "" {
		kinds = append(kinds, "s3")
	}
	if c.Get("connection_string") != "" || c.Get("azure_account_name") != "" || c.Get("azure_subscription_id") != "" {
		kinds = append(kinds, "azure_blob")
	}
	if c.Get("sharepoint_tenant_id") != "" && c.Get("sharepoint_client_id") != "" && c.Get("sharepoint_client_secret") != "" {
		kinds = append(kinds, "sharepoint")
	}
	if c.Get("databricks_host") != "" && c.Get("databricks_token") != "" {
		if c.Get("databricks_catalog") != "" && c.Get("databricks_schema") != "" {
			kinds = append(kinds, "databricks_volume")
		}
		if c.Get("databricks_dbfs_path") != "" {
			kinds = append(kinds, "databricks_dbfs")
		}
	}
	return kinds
}
