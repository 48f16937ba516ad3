// Package kernel renders the grid-specialized update kernel from a source
// template.
//
// Templates carry placeholder tokens that are replaced by literals:
//
//	_$i  entry point suffix (always _0)
//	$nx  $ny  $nz  lattice dimensions
//	$sg  flat offset of the driven port node
//	$sd  axis (0=x, 1=y, 2=z) the driven node couples along
//
// A token is only recognized when followed by a non-word character, which is
// kept in the output.
package kernel

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"regexp"
	"strconv"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/port"
)

// Entry point names produced by the _$i suffix.
const (
	InitSymbol = "init_0"
	StepSymbol = "step_0"
	QuitSymbol = "quit_0"
)

// HeaderName is the include file the default template expects.
const HeaderName = "fit_abi.h"

//go:embed templates/chunk.c templates/post.c templates/include/fit_abi.h
var templates embed.FS

type substitution struct {
	re    *regexp.Regexp
	value func(g *grid.Grid, p *port.Port) string
}

var substitutions = []substitution{
	{regexp.MustCompile(`_\$i(\W)`), func(*grid.Grid, *port.Port) string { return "_0" }},
	{regexp.MustCompile(`\$nx(\W)`), func(g *grid.Grid, _ *port.Port) string { return strconv.Itoa(g.NX()) }},
	{regexp.MustCompile(`\$ny(\W)`), func(g *grid.Grid, _ *port.Port) string { return strconv.Itoa(g.NY()) }},
	{regexp.MustCompile(`\$nz(\W)`), func(g *grid.Grid, _ *port.Port) string { return strconv.Itoa(g.NZ()) }},
	{regexp.MustCompile(`\$sg(\W)`), func(g *grid.Grid, p *port.Port) string { return strconv.Itoa(feedOffset(g, p)) }},
	{regexp.MustCompile(`\$sd(\W)`), func(_ *grid.Grid, p *port.Port) string { return strconv.Itoa(feedAxis(p)) }},
}

// Render substitutes grid and port literals into tpl. The output depends only
// on the inputs.
func Render(g *grid.Grid, p *port.Port, tpl string) string {
	out := tpl
	for _, s := range substitutions {
		out = s.re.ReplaceAllString(out, s.value(g, p)+"${1}")
	}
	return out
}

// feedOffset is -1 when there is no port to drive.
func feedOffset(g *grid.Grid, p *port.Port) int {
	if p == nil || p.Length() < 1 {
		return -1
	}
	return p.FeedOffset(g)
}

func feedAxis(p *port.Port) int {
	if p == nil || p.Length() < 1 {
		return 0
	}
	return p.FeedAxis()
}

// DefaultTemplate returns the built-in C kernel template.
func DefaultTemplate() string {
	chunk, err := templates.ReadFile("templates/chunk.c")
	if err != nil {
		panic("kernel: embedded chunk template missing: " + err.Error())
	}
	post, err := templates.ReadFile("templates/post.c")
	if err != nil {
		panic("kernel: embedded post template missing: " + err.Error())
	}
	return string(chunk) + string(post)
}

// Header returns the ABI header the default template includes.
func Header() []byte {
	h, err := templates.ReadFile("templates/include/" + HeaderName)
	if err != nil {
		panic("kernel: embedded header missing: " + err.Error())
	}
	return h
}

// Hash returns the hex sha256 of rendered source.
func Hash(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}
