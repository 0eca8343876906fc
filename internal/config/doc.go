// Package config loads and saves the node configuration file.
//
// The file is YAML and describes what the node advertises (services), what
// it keeps resolved (watch), the table sizes, the protocol timing and the
// diagnostics endpoint. Durations are written as Go duration strings
// ("10s", "31m").
//
// # Configuration File Location
//
// Unless a path is given explicitly the file lives at:
//   - Linux: $XDG_CONFIG_HOME/meshsd/node.yaml or $HOME/.config/meshsd/node.yaml
//   - macOS: $HOME/.config/meshsd/node.yaml
//   - Windows: %LOCALAPPDATA%\meshsd\node.yaml
//
// # Usage Example
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Services = append(cfg.Services, protocol.Service{Name: "lamp", Type: "rgbw"})
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Save(path); err != nil {
//	    log.Fatal(err)
//	}
//
// Save writes through a temporary file and a rename, so a crash never
// leaves a half-written file behind.
package config
