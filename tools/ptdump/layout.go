package main

import (
	"strconv"
	"strings"

	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/vmm"
	"baremetal/kernel/mm/vmm/ia32"
	"baremetal/kernel/mm/vmm/lpae"

	units "github.com/docker/go-units"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	formats = map[string]vmm.Format{
		"lpae": lpae.Format{},
		"ia32": ia32.Format{},
	}

	permNames = map[string]vmm.Perm{
		"write": vmm.PermWrite,
		"user":  vmm.PermUser,
		"exec":  vmm.PermExec,
	}

	attrNames = map[string]vmm.MemAttr{
		"":          vmm.AttrNormal,
		"normal":    vmm.AttrNormal,
		"normal-nc": vmm.AttrNormalNC,
		"device":    vmm.AttrDevice,
	}
)

// Layout is the on-disk description of a machine and the mappings that
// should be built for it.
type Layout struct {
	Scheme string       `toml:"scheme"`
	RAM    RAMSpec      `toml:"ram"`
	Boot   []RegionSpec `toml:"boot"`
	Kernel []RegionSpec `toml:"kernel"`
	Unmap  []UnmapSpec  `toml:"unmap"`
}

// RAMSpec describes the physical memory region of the machine. Reserved
// bytes following the boot table pool model the kernel image and are not
// handed to the page allocator.
type RAMSpec struct {
	Start    string `toml:"start"`
	Size     string `toml:"size"`
	Reserved string `toml:"reserved"`
}

// RegionSpec describes a mapping. Phys defaults to Virt.
type RegionSpec struct {
	Virt string   `toml:"virt"`
	Phys string   `toml:"phys"`
	Size string   `toml:"size"`
	Perm []string `toml:"perm"`
	Attr string   `toml:"attr"`
}

// UnmapSpec removes Pages pages starting at Virt from the kernel address
// space after it has been built.
type UnmapSpec struct {
	Virt  string `toml:"virt"`
	Pages uint32 `toml:"pages"`
}

// Config is the decoded form of a Layout.
type Config struct {
	Format   vmm.Format
	RAMStart uintptr
	RAMSize  mm.Size
	Reserved mm.Size
	Boot     []boot.Region
	Kernel   []boot.Region
	Unmap    []Unmap
}

// Unmap is a decoded UnmapSpec.
type Unmap struct {
	Virt  uintptr
	Pages uint32
}

// LoadLayout reads and decodes the layout file at path.
func LoadLayout(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load layout %s", path)
	}

	var layout Layout
	if err := tree.Unmarshal(&layout); err != nil {
		return nil, errors.Wrapf(err, "failed to decode layout %s", path)
	}

	cfg, err := layout.Decode()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid layout %s", path)
	}
	return cfg, nil
}

// Decode validates the layout and converts it to a Config.
func (l *Layout) Decode() (*Config, error) {
	format, ok := formats[strings.ToLower(l.Scheme)]
	if !ok {
		return nil, errors.Errorf("unknown translation scheme %q", l.Scheme)
	}

	cfg := &Config{Format: format}

	var err error
	if cfg.RAMStart, err = parseAddr(l.RAM.Start); err != nil {
		return nil, errors.Wrap(err, "ram.start")
	}
	if cfg.RAMSize, err = parseSize(l.RAM.Size); err != nil {
		return nil, errors.Wrap(err, "ram.size")
	}
	if l.RAM.Reserved != "" {
		if cfg.Reserved, err = parseSize(l.RAM.Reserved); err != nil {
			return nil, errors.Wrap(err, "ram.reserved")
		}
	}

	if cfg.RAMStart&(mm.PageSize-1) != 0 || uintptr(cfg.RAMSize)&(mm.PageSize-1) != 0 {
		return nil, errors.Errorf("ram region must be page-aligned")
	}
	if poolSize := mm.Size((1 + boot.PoolTables) * mm.PageSize); cfg.RAMSize <= poolSize+cfg.Reserved {
		return nil, errors.Errorf("ram region too small to hold the boot tables and %d reserved bytes", cfg.Reserved)
	}

	if cfg.Boot, err = decodeRegions("boot", l.Boot); err != nil {
		return nil, err
	}
	if cfg.Kernel, err = decodeRegions("kernel", l.Kernel); err != nil {
		return nil, err
	}

	cfg.Unmap = make([]Unmap, 0, len(l.Unmap))
	for index, spec := range l.Unmap {
		virt, err := parseAddr(spec.Virt)
		if err != nil {
			return nil, errors.Wrapf(err, "unmap[%d].virt", index)
		}
		cfg.Unmap = append(cfg.Unmap, Unmap{Virt: virt, Pages: spec.Pages})
	}

	return cfg, nil
}

func decodeRegions(section string, specs []RegionSpec) ([]boot.Region, error) {
	regions := make([]boot.Region, 0, len(specs))
	for index, spec := range specs {
		region, err := spec.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", section, index)
		}
		regions = append(regions, region)
	}

	return regions, nil
}

func (spec RegionSpec) decode() (boot.Region, error) {
	var (
		region boot.Region
		err    error
	)

	if region.Virt, err = parseAddr(spec.Virt); err != nil {
		return region, errors.Wrap(err, "virt")
	}

	region.Phys = region.Virt
	if spec.Phys != "" {
		if region.Phys, err = parseAddr(spec.Phys); err != nil {
			return region, errors.Wrap(err, "phys")
		}
	}

	if region.Size, err = parseSize(spec.Size); err != nil {
		return region, errors.Wrap(err, "size")
	}

	if region.Perm, err = parsePerm(spec.Perm); err != nil {
		return region, err
	}

	attr, ok := attrNames[strings.ToLower(spec.Attr)]
	if !ok {
		return region, errors.Errorf("unknown memory attribute %q", spec.Attr)
	}
	region.Attr = attr

	return region, nil
}

// parsePerm combines a list of permission names into a vmm.Perm. An empty
// list yields a kernel read-only mapping.
func parsePerm(names []string) (vmm.Perm, error) {
	names = lo.Map(names, func(name string, _ int) string { return strings.ToLower(name) })

	unknown := lo.Filter(names, func(name string, _ int) bool {
		_, ok := permNames[name]
		return !ok
	})
	if len(unknown) != 0 {
		return 0, errors.Errorf("unknown permissions: %s", strings.Join(unknown, ", "))
	}

	return lo.Reduce(lo.Uniq(names), func(perm vmm.Perm, name string, _ int) vmm.Perm {
		return perm | permNames[name]
	}, vmm.Perm(0)), nil
}

func parseAddr(value string) (uintptr, error) {
	if value == "" {
		return 0, errors.New("missing address")
	}

	addr, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", value)
	}
	return uintptr(addr), nil
}

func parseSize(value string) (mm.Size, error) {
	if value == "" {
		return 0, errors.New("missing size")
	}

	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", value)
	}
	if size <= 0 {
		return 0, errors.Errorf("size %q must be positive", value)
	}
	return mm.Size(size), nil
}
