// Package config provides configuration structures and utilities for lensfind.
// It defines the options for analysing catalogs, the detector thresholds,
// report generation preferences and the optional .lensfind YAML file.
package config
