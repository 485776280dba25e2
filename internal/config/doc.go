// Package config loads the cnlwiki deployment descriptor.
//
// The descriptor is read from cnlwiki.yaml, cnlwiki.yml or cnlwiki.json in
// the working directory, or from the file named by --config. It declares the
// deployment context shared by every instance, the named backends the
// process constructs and publishes, and the wiki instances to mount.
//
// # Descriptor Structure
//
//	server:
//	  addr: ":8080"
//	  acquireTimeout: 2m
//	  sessionIdleTimeout: 30m
//	  logFormat: text
//
//	context:
//	  datadir: data
//	  languages: en,de
//
//	backends:
//	  - name: geo
//	    params:
//	      ontology: geography
//
//	instances:
//	  - name: geo
//	    path: /geo
//	    backend: geo
//	  - path: /scratch
//	    params:
//	      ontology: scratch
//
// Context keys are exposed to instances under the "context:" namespace.
// Instances without a backend construct a private one from their own
// parameters. Backends published by embedding code rather than the
// descriptor are listed under externalBackends.
package config
