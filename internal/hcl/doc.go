// Package hcl provides the concrete HCL implementation of config.Loader. It
// parses topology files, evaluates task config_data expressions with cty and
// translates the blocks into the format-agnostic config.Model.
package hcl
