package mcu

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// xSuiteFile is the raw yaml layout of a suite file
type xSuiteFile struct {
	Suites []xSuite `yaml:"suites"`
}

type xSuite struct {
	Name  string  `yaml:"name"`
	Cases []xCase `yaml:"cases"`
}

type xCase struct {
	Name     string     `yaml:"name"`
	Command  string     `yaml:"command,omitempty"`
	Opcode   *int       `yaml:"opcode,omitempty"`
	Params   []int      `yaml:"params,omitempty"`
	Overflow *xOverflow `yaml:"overflow,omitempty"`
	Expect   Expect     `yaml:"expect"`
}

type xOverflow struct {
	Opcode int `yaml:"opcode"`
	Count  int `yaml:"count"`
}

func toByte(what string, v int) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%s %d out of byte range", what, v)
	}
	return byte(v), nil
}

func (x xCase) request() (Request, error) {
	if x.Overflow != nil {
		op, err := toByte("overflow opcode", x.Overflow.Opcode)
		if err != nil {
			return nil, err
		}
		if x.Overflow.Count < 1 {
			return nil, fmt.Errorf("overflow count must be positive, got %d", x.Overflow.Count)
		}
		return OverflowProbe{Opcode: op, Count: x.Overflow.Count}, nil
	}

	var p Packet
	switch {
	case x.Command != "":
		c, err := Lookup(x.Command)
		if err != nil {
			return nil, err
		}
		p = c.Request()
	case x.Opcode != nil:
		op, err := toByte("opcode", *x.Opcode)
		if err != nil {
			return nil, err
		}
		p.Opcode = op
	default:
		return nil, errors.New("needs one of command, opcode or overflow")
	}

	if x.Params != nil {
		p.Params = make([]byte, len(x.Params))
		for i, v := range x.Params {
			b, err := toByte(fmt.Sprintf("param %d", i), v)
			if err != nil {
				return nil, err
			}
			p.Params[i] = b
		}
	}
	return p, nil
}

// LoadSuites reads suite definitions in yaml format
func LoadSuites(r io.Reader) ([]Suite, error) {
	var f xSuiteFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("suite parse failed: %w", err)
	}

	suites := make([]Suite, 0, len(f.Suites))
	for _, xs := range f.Suites {
		if xs.Name == "" {
			return nil, errors.New("suite without name")
		}
		s := Suite{Name: xs.Name}
		for i, xc := range xs.Cases {
			if xc.Name == "" {
				xc.Name = fmt.Sprintf("%s #%d", xs.Name, i+1)
			}
			req, err := xc.request()
			if err == nil && xc.Expect.empty() {
				err = errors.New("needs an expect block with len or bytes")
			}
			if err != nil {
				return nil, fmt.Errorf("suite %q case %q: %w", xs.Name, xc.Name, err)
			}
			s.Cases = append(s.Cases, Case{Name: xc.Name, Request: req, Validate: xc.Expect.Validator()})
		}
		log.Debugf("Loaded suite %v with %d cases", s.Name, len(s.Cases))
		suites = append(suites, s)
	}
	return suites, nil
}

// LoadSuiteFile reads suite definitions from the yaml file at path
func LoadSuiteFile(path string) ([]Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("suite load failed (%s): %w", path, err)
	}
	defer f.Close()
	return LoadSuites(f)
}
