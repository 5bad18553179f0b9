// Package config provides configuration parsing for the reactive server.
//
// The configuration is stored in reactive.json in the working directory or
// one of its parents. This package handles loading, saving, and validating
// configuration.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "shutdownTimeout": "30s",
//	    "callTimeout": "5s"
//	  },
//	  "engine": {
//	    "maxFlushRounds": 100,
//	    "logLevel": "info",
//	    "logFormat": "text"
//	  },
//	  "store": {
//	    "backend": "s3",
//	    "key": "sheet.json",
//	    "bucket": "my-sheets",
//	    "prefix": "prod",
//	    "region": "us-east-1"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "reactive"
//	  },
//	  "tracing": {
//	    "enabled": false,
//	    "minDuration": "1ms"
//	  }
//	}
//
// The sqlite backend takes "path" instead of the S3 fields.
//
// # Environment
//
// ApplyEnv overrides any field from REACTIVE_<SECTION>_<KEY>, for example
// REACTIVE_SERVER_PORT=9000 or REACTIVE_STORE_BACKEND=sqlite.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := cfg.ApplyEnv(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
