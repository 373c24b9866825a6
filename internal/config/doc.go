// Package config loads and validates the webharvest YAML configuration:
// global scraper defaults plus named scrape targets.
//
// Selector maps preserve the document order of their keys so that output
// columns follow the order the user wrote, and every target is validated
// at load time so configuration mistakes fail the invocation before any
// network activity.
package config
