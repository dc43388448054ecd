// Package config provides configuration loading for devd projects.
//
// The configuration is stored in devd.json (or devd.yaml) at the project
// root. Every field is optional; missing values fall back to the defaults
// returned by New.
//
// # Configuration File Structure
//
//	{
//	  "port": 3000,
//	  "host": "localhost",
//	  "hotReload": true,
//	  "openBrowser": false,
//	  "enableLogs": true,
//	  "enableMetrics": true,
//	  "srcDir": "src",
//	  "distDir": "dist",
//	  "publicDir": "public",
//	  "watchPatterns": ["src/**/*", "public/**/*"],
//	  "ignorePatterns": ["**/*.test.ts"],
//	  "build": {
//	    "compiler": "tsc",
//	    "timeout": "2m"
//	  },
//	  "watch": {"debounce": "100ms"},
//	  "logs": {"bufferSize": 1000},
//	  "metrics": {"interval": "5s"}
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Validation errors are coded E120-E125 and are fatal: the server refuses
// to start with an invalid configuration.
package config
