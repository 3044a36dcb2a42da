package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/filter"
	"github.com/ViaSnake/mcaselector/internal/service"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
)

const (
	// MaxQueryLength bounds filter query text
	MaxQueryLength = 4096
	// MaxEdits bounds the edit list of one job
	MaxEdits = 64
)

// EditSpec is the declarative form of a field edit
type EditSpec struct {
	Field string     `yaml:"field" json:"field"`
	Value string     `yaml:"value" json:"value"`
	Mode  field.Mode `yaml:"mode" json:"mode"`
}

// JobFile is a batch job as written in YAML
type JobFile struct {
	Paths   []string      `yaml:"paths" json:"paths"`
	Query   string        `yaml:"query" json:"query"`
	Filters []filter.Spec `yaml:"filters" json:"filters"`
	Edits   []EditSpec    `yaml:"edits" json:"edits"`
	DryRun  bool          `yaml:"dry_run" json:"dry_run"`
}

// LoadJobFile reads a job file
func LoadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidArgument("failed to read job file", err).WithDetail("path", path)
	}

	var jf JobFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, errors.InvalidArgument("failed to parse job file", err).WithDetail("path", path)
	}
	return &jf, nil
}

// Validator turns user input into pipeline inputs, rejecting anything that
// would fail a batch before it starts
type Validator struct {
	maxQueryLength int
	maxEdits       int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxQueryLength: MaxQueryLength,
		maxEdits:       MaxEdits,
	}
}

// ExpandPaths resolves files and directories to region file paths. A
// directory contributes every r.<x>.<z>.mca directly inside it. The result
// is sorted and free of duplicates.
func (v *Validator) ExpandPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.InvalidArgument("no paths given", nil)
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, p := range paths {
		if strings.ContainsRune(p, 0) {
			return nil, errors.InvalidArgument("path cannot contain null bytes", nil)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("path %s is not accessible", p), err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, errors.InvalidArgument(fmt.Sprintf("path %s is not a regular file", p), nil)
			}
			if _, _, ok := region.ParseName(p); !ok {
				return nil, errors.InvalidArgument(fmt.Sprintf("path %s is not a region file name", p), nil)
			}
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("failed to list %s", p), err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				if _, _, ok := region.ParseName(e.Name()); ok {
					add(filepath.Join(p, e.Name()))
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, errors.InvalidArgument("no region files found", nil)
	}
	sort.Strings(out)
	return out, nil
}

// BuildChain parses either query text or declarative filters, not both
func (v *Validator) BuildChain(query string, specs []filter.Spec) (filter.Chain, error) {
	query = strings.TrimSpace(query)
	if query != "" && len(specs) > 0 {
		return nil, errors.FilterConfiguration("give either a query or a filter list, not both", nil)
	}
	if len(query) > v.maxQueryLength {
		return nil, errors.FilterConfiguration(fmt.Sprintf("query exceeds maximum length of %d", v.maxQueryLength), nil)
	}
	if query != "" {
		return filter.Parse(query)
	}
	return filter.FromSpecs(specs)
}

// BuildEdits parses edit specs. A blank mode means change. A field may be
// listed more than once; edits keep their order.
func (v *Validator) BuildEdits(specs []EditSpec) ([]field.Edit, error) {
	if len(specs) > v.maxEdits {
		return nil, errors.InvalidArgument(fmt.Sprintf("at most %d edits allowed", v.maxEdits), nil)
	}

	edits := make([]field.Edit, 0, len(specs))
	for _, s := range specs {
		mode := field.Mode(strings.ToLower(string(s.Mode)))
		if mode == "" {
			mode = field.ModeChange
		}
		e, err := field.ParseEdit(s.Field+"="+s.Value, mode)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// ValidateJob checks a job file and builds the batch it describes
func (v *Validator) ValidateJob(jf *JobFile) (*service.BatchJob, error) {
	if jf == nil {
		return nil, errors.InvalidArgument("job is required", nil)
	}

	chain, err := v.BuildChain(jf.Query, jf.Filters)
	if err != nil {
		return nil, err
	}
	edits, err := v.BuildEdits(jf.Edits)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 && len(edits) == 0 {
		return nil, errors.InvalidArgument("job has neither filters nor edits", nil)
	}

	paths, err := v.ExpandPaths(jf.Paths)
	if err != nil {
		return nil, err
	}

	return &service.BatchJob{
		Paths:  paths,
		Filter: chain,
		Edits:  edits,
		DryRun: jf.DryRun,
	}, nil
}
