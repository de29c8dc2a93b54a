package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/f1hal/cmd/f1hal/console"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/script"
)

type resultView struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Read     string `yaml:"read,omitempty"`
	Error    string `yaml:"error,omitempty"`
	Class    string `yaml:"class"`
	Duration string `yaml:"duration"`
}

// recorder prints a line per transaction and keeps the results for the
// final YAML report.
type recorder struct {
	views []resultView
}

func (r *recorder) report(res script.Result) {
	console.PInfof(console.PictoPin, "%s %s %s %s", res.Name, res.Address, res.Hex(), console.Outcome(res.Err))
	v := resultView{
		Name:     res.Name,
		Address:  res.Address.String(),
		Read:     res.Hex(),
		Class:    i2c.Classify(res.Err).String(),
		Duration: res.Duration.String(),
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	r.views = append(r.views, v)
}

func (r *recorder) flush() error {
	enc := yaml.NewEncoder(console.Output())
	defer enc.Close()
	err := enc.Encode(map[string][]resultView{"results": r.views})
	if err != nil {
		return fmt.Errorf("encoding error: %w", err)
	}
	return nil
}
