// Command widccgo is the compiler driver: it turns one or more C source
// files into assembly, object files, or a linked binary, per spec.md §6's
// CLI surface. Argument parsing is hand-rolled rather than built on the
// flag package, because GCC-style options (-Ipath, -DNAME=VAL, -o in
// either "-o PATH" or "-oPATH" form) don't fit flag's model; this mirrors
// how widcc's own main() scans argv (see original_source/main.c).
package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/logutils"

	"github.com/fuhsnn/widccgo/internal/driver"
	"github.com/fuhsnn/widccgo/internal/parser"
	"github.com/fuhsnn/widccgo/internal/stats"
)

// config accumulates the parsed command line before Compile runs.
type config struct {
	includePaths []string
	defines      []string
	undefs       []string
	includeFiles []string

	std parser.StdVer

	output     string
	preprocess bool // -E
	asmOnly    bool // -S
	compile    bool // -c
	fcommon    bool // -fcommon/-fno-common, default true
	timeReport bool // -ftime-report
	debug      bool // -d, this driver's own verbose logging

	depMode    driver.DepMode
	depFile    string
	depTargets []string
	depPhony   bool

	ldExtra []string
	inputs  []string
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN"},
		MinLevel: logutils.LogLevel("INFO"),
		Writer:   os.Stderr,
	}
	if cfg.debug {
		filter.MinLevel = logutils.LogLevel("DEBUG")
	}
	log.SetOutput(filter)
	log.SetFlags(0)

	if len(cfg.inputs) == 0 {
		log.Fatalf("[INFO] no input files")
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[INFO] %s", err)
	}
}

func run(cfg *config) error {
	collector := &stats.Collector{}

	// -o only makes sense for a single input unless we're linking, since
	// each source file otherwise produces its own assembly/object.
	singleOutput := cfg.output != "" && (cfg.preprocess || cfg.asmOnly || cfg.compile) && len(cfg.inputs) == 1

	var objFiles []string
	for _, input := range cfg.inputs {
		asmPath, err := compileOne(cfg, collector, input, singleOutput)
		if err != nil {
			return err
		}
		if cfg.preprocess {
			continue
		}
		if cfg.asmOnly {
			continue
		}

		objPath := asmPath
		if !strings.HasSuffix(objPath, ".o") {
			objPath = replaceExt(asmPath, ".o")
			if err := assemble(asmPath, objPath); err != nil {
				return err
			}
			os.Remove(asmPath)
		}
		if cfg.compile {
			dst := cfg.output
			if dst == "" || len(cfg.inputs) > 1 {
				dst = replaceExt(input, ".o")
			}
			if dst != objPath {
				if err := os.Rename(objPath, dst); err != nil {
					return err
				}
			}
			continue
		}
		objFiles = append(objFiles, objPath)
	}

	if cfg.preprocess || cfg.asmOnly || cfg.compile {
		return nil
	}

	out := cfg.output
	if out == "" {
		out = "a.out"
	}
	if err := link(objFiles, out, cfg.ldExtra); err != nil {
		return err
	}
	for _, o := range objFiles {
		os.Remove(o)
	}
	return nil
}

// compileOne drives one translation unit through internal/driver and
// returns the path of the file it wrote (preprocessed source, assembly,
// or — when -o names it directly — that exact path).
func compileOne(cfg *config, collector *stats.Collector, input string, singleOutput bool) (string, error) {
	outPath := cfg.output
	switch {
	case singleOutput:
		// outPath already set.
	case cfg.preprocess:
		outPath = "" // stdout, matching -E with no -o
	default:
		outPath = replaceExt(input, ".s")
	}

	var f *os.File
	var err error
	w := os.Stdout
	if outPath != "" {
		f, err = os.Create(outPath)
		if err != nil {
			return "", err
		}
		defer f.Close()
		w = f
	}

	opts := driver.Options{
		IncludePaths:   cfg.includePaths,
		Defines:        cfg.defines,
		Undefs:         cfg.undefs,
		IncludeFiles:   cfg.includeFiles,
		Std:            cfg.std,
		PreprocessOnly: cfg.preprocess,
		FCommon:        cfg.fcommon,
		TimeReport:     cfg.timeReport,
		DepMode:        cfg.depMode,
		DepFile:        cfg.depFile,
		DepTargets:     cfg.depTargets,
		DepPhony:       cfg.depPhony,
		Output:         w,
		Stats:          collector,
	}

	if err := driver.Compile(opts, input); err != nil {
		return "", fmt.Errorf("%s: %w", input, err)
	}
	if outPath == "" {
		return "", nil
	}
	return outPath, nil
}

// assemble shells out to the system assembler, the way widcc's own
// assemble() runs "as input -o output" as a subprocess.
func assemble(input, output string) error {
	cmd := exec.Command("as", input, "-o", output)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// link invokes the system linker against a fixed set of crt objects and
// libc/libgcc, mirroring widcc's link() search over hard-coded paths
// (spec.md §6's "Environment" note).
func link(objFiles []string, output string, extra []string) error {
	args := []string{"-o", output, "-m", "elf_x86_64", "--dynamic-linker", findLib("ld-linux-x86-64.so.2")}
	args = append(args, findLib("crt1.o"), findLib("crti.o"), findGcc("crtbegin.o"))
	args = append(args, "-L"+filepath.Dir(findGcc("crtbegin.o")))
	args = append(args, objFiles...)
	args = append(args, extra...)
	args = append(args, "-lc", findGcc("crtend.o"), findLib("crti.o"))

	cmd := exec.Command("ld", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

var libSearchPaths = []string{
	"/usr/lib/x86_64-linux-gnu",
	"/usr/lib64",
	"/usr/lib",
	"/lib64",
	"/lib",
}

func findLib(name string) string {
	for _, dir := range libSearchPaths {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return name
}

func findGcc(name string) string {
	matches, _ := filepath.Glob("/usr/lib/gcc/x86_64-linux-gnu/*/" + name)
	if len(matches) > 0 {
		return matches[0]
	}
	return name
}

func replaceExt(path, ext string) string {
	base := filepath.Base(path)
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	return base + ext
}

// parseArgs hand-scans argv the way widcc's parse_args does: GCC option
// syntax mixes "-I path" and "-Ipath" forms, which the flag package
// cannot express.
func parseArgs(args []string) (*config, error) {
	cfg := &config{fcommon: true, std: parser.C17}

	for i := 0; i < len(args); i++ {
		a := args[i]

		takeNext := func() (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("option %s requires an argument", a)
			}
			return args[i], nil
		}

		switch {
		case a == "-E":
			cfg.preprocess = true
		case a == "-S":
			cfg.asmOnly = true
		case a == "-c":
			cfg.compile = true
		case a == "-d":
			cfg.debug = true
		case a == "-ftime-report":
			cfg.timeReport = true
		case a == "-fcommon":
			cfg.fcommon = true
		case a == "-fno-common":
			cfg.fcommon = false
		case a == "-o":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.output = v
		case strings.HasPrefix(a, "-o") && a != "-o":
			cfg.output = a[2:]
		case a == "-I":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.includePaths = append(cfg.includePaths, v)
		case strings.HasPrefix(a, "-I"):
			cfg.includePaths = append(cfg.includePaths, a[2:])
		case a == "-D":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.defines = append(cfg.defines, v)
		case strings.HasPrefix(a, "-D"):
			cfg.defines = append(cfg.defines, a[2:])
		case a == "-U":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.undefs = append(cfg.undefs, v)
		case strings.HasPrefix(a, "-U"):
			cfg.undefs = append(cfg.undefs, a[2:])
		case a == "-include":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.includeFiles = append(cfg.includeFiles, v)
		case a == "-M":
			cfg.depMode = driver.DepM
		case a == "-MM":
			cfg.depMode = driver.DepMM
		case a == "-MD":
			if cfg.depMode == driver.DepNone {
				cfg.depMode = driver.DepMD
			}
		case a == "-MMD":
			cfg.depMode = driver.DepMMD
		case a == "-MF":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.depFile = v
		case a == "-MP":
			cfg.depPhony = true
		case a == "-MT":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.depTargets = append(cfg.depTargets, v)
		case a == "-MQ":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.depTargets = append(cfg.depTargets, quoteMakefile(v))
		case strings.HasPrefix(a, "-std=c"):
			std, err := parseStd(a[len("-std=c"):])
			if err != nil {
				return nil, err
			}
			cfg.std = std
		case a == "-x":
			if _, err := takeNext(); err != nil {
				return nil, err
			}
		case a == "-static" || a == "-shared" || a == "-s" || strings.HasPrefix(a, "-l"):
			cfg.ldExtra = append(cfg.ldExtra, a)
		case a == "-Xlinker":
			v, err := takeNext()
			if err != nil {
				return nil, err
			}
			cfg.ldExtra = append(cfg.ldExtra, v)
		case a == "-pthread":
			cfg.defines = append(cfg.defines, "_REENTRANT")
			cfg.ldExtra = append(cfg.ldExtra, "-lpthread")
		case a == "-fpic" || a == "-fPIC" || a == "-fdata-sections" ||
			a == "-ffunction-sections" || a == "-funsigned-char" || a == "-fsigned-char" ||
			strings.HasPrefix(a, "-fstack-reuse=") || strings.HasPrefix(a, "-g") ||
			strings.HasPrefix(a, "-O") || strings.HasPrefix(a, "-W") ||
			strings.HasPrefix(a, "-march=") || a == "-ansi" || a == "-pedantic" || a == "-w":
			// Accepted and currently a no-op; this compiler always targets
			// x86-64 SysV non-PIC code with one codegen strategy.
		case a == "--help":
			printUsage()
			os.Exit(0)
		case len(a) > 1 && a[0] == '-':
			return nil, fmt.Errorf("unknown argument: %s", a)
		default:
			cfg.inputs = append(cfg.inputs, a)
		}
	}

	return cfg, nil
}

func parseStd(s string) (parser.StdVer, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown c standard: c%s", s)
	}
	switch v {
	case 89, 90:
		return parser.C89, nil
	case 99:
		return parser.C99, nil
	case 11:
		return parser.C11, nil
	case 17, 18:
		return parser.C17, nil
	case 23:
		return parser.C23, nil
	default:
		return 0, fmt.Errorf("unknown c standard: c%s", s)
	}
}

// quoteMakefile escapes a -MQ target the way a makefile rule requires.
func quoteMakefile(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '$':
			b.WriteString("$$")
		case '#':
			b.WriteString(`\#`)
		case ' ', '\t':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: widccgo [ -E | -S | -c ] [ -o path ] [ options ] file...")
}
