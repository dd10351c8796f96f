package midicc

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templateFS embed.FS

var tableTemplate = template.Must(template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*.txt"))

type (
	dumpRow struct {
		Control    int
		Function   string
		Invert     bool
		Registered bool
	}

	dumpManual struct {
		Name string
		Rows []dumpRow
	}

	// NameMap is the exported controller name map: display names for all
	// functions and the current assignment of controllers to functions.
	NameMap struct {
		Functions   []FunctionName            `yaml:"functions"`
		Controllers map[string]map[int]string `yaml:"controllers"`
	}

	FunctionName struct {
		Name        string   `yaml:"name"`
		Display     string   `yaml:"display"`
		Controllers []string `yaml:",flow,omitempty"`
	}
)

// Dump writes a human readable table of the bindings.
func (r *Registry) Dump(w io.Writer) error {
	data := struct {
		Manuals  []dumpManual
		Learning string
	}{}
	for m := range NumManuals {
		dm := dumpManual{Name: m.String()}
		for cc := range 128 {
			if b, ok := r.Lookup(m, uint8(cc)); ok {
				dm.Rows = append(dm.Rows, dumpRow{Control: cc, Function: b.Function.String(), Invert: b.Invert, Registered: r.Registered(b.Function)})
			}
		}
		data.Manuals = append(data.Manuals, dm)
	}
	if fn, ok := r.Learning(); ok {
		data.Learning = fn.String()
	}
	if err := tableTemplate.ExecuteTemplate(w, "cctable.txt", data); err != nil {
		return fmt.Errorf("could not execute controller table template: %w", err)
	}
	return nil
}

// DisplayName returns a human readable name of the function, e.g. "Upper
// Drawbar16" for "upper.drawbar16".
func DisplayName(fn FunctionID) string {
	s := strings.NewReplacer(".", " ", "-", " ").Replace(fn.String())
	return cases.Title(language.English).String(s)
}

// Names returns the controller name map of the registry.
func (r *Registry) Names() NameMap {
	ret := NameMap{Controllers: map[string]map[int]string{}}
	for fn := range Functions {
		f := FunctionName{Name: fn.String(), Display: DisplayName(fn)}
		for b := range r.Bindings(fn) {
			f.Controllers = append(f.Controllers, b.Manual.String()+"."+fmt.Sprint(b.Control))
		}
		ret.Functions = append(ret.Functions, f)
	}
	for b := range r.All {
		m := ret.Controllers[b.Manual.String()]
		if m == nil {
			m = map[int]string{}
			ret.Controllers[b.Manual.String()] = m
		}
		m[int(b.Control)] = b.ConfigValue()
	}
	return ret
}

// WriteNames writes the controller name map as YAML.
func (r *Registry) WriteNames(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Names()); err != nil {
		return fmt.Errorf("could not encode controller names: %w", err)
	}
	return enc.Close()
}
