// Package cli implements the kvm-dashboard command-line interface.
//
// The root command opens the interactive dashboard. The remaining
// commands share its configuration and hypervisor client:
//
//	kvm-dashboard              - interactive dashboard (needs a terminal)
//	kvm-dashboard watch        - headless refresh loop, events logged
//	kvm-dashboard list         - print every machine once
//	kvm-dashboard start <name> - start a machine
//	kvm-dashboard stop <name>  - shut a machine down and wait until it is off
//	kvm-dashboard version      - print build information
//
// Configuration comes from an optional YAML file (--config), KVMDASH_*
// environment variables and the persistent flags, in increasing order of
// precedence.
package cli
