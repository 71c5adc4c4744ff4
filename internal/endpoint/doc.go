/*
Package endpoint parses the task port references used in topology files.

An endpoint names a task of the same configuration and, optionally, one of
its ports: `fft[0]`, `adc`. A missing index refers to port 0.
*/
package endpoint
