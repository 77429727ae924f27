// Package platform probes operating system capabilities that gate
// compute backends.
package platform
