package scene

import (
	"bytes"
	_ "embed"
)

//go:embed solar_system.yaml
var solarSystemYAML []byte

// SolarSystem returns the built-in scene: the Sun, the major planets out
// to Saturn, the Moon, the Galilean moons, Titan and an Earth-Moon
// synodic frame, with a few named places.
func SolarSystem() (*Scene, error) {
	return Load(bytes.NewReader(solarSystemYAML))
}
