package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Component is the lifecycle interface of every page.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}

// Pages is a stack of named pages over tview.Pages. Pages may carry a title
// that replaces their name in the trail reported to SetOnChange.
type Pages struct {
	*tview.Pages
	stack    []string
	titles   map[string]string
	onChange func(trail []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:  tview.NewPages(),
		titles: make(map[string]string),
	}
}

// SetOnChange sets a callback fired with the titled trail after every change.
func (p *Pages) SetOnChange(fn func(trail []string)) {
	p.onChange = fn
}

// SetTitle sets the label shown for a page; an empty title restores its name.
func (p *Pages) SetTitle(name, title string) {
	if title == "" {
		delete(p.titles, name)
	} else {
		p.titles[name] = title
	}
	if p.Contains(name) {
		p.notify()
	}
}

// Push shows a page on top of the stack. A page already on the stack is
// returned to instead, dropping the pages above it.
func (p *Pages) Push(name string) {
	if i := slices.Index(p.stack, name); i >= 0 {
		for _, n := range p.stack[i+1:] {
			p.HidePage(n)
		}
		p.stack = p.stack[:i+1]
		p.show(name)
		return
	}
	if len(p.stack) > 0 {
		p.HidePage(p.stack[len(p.stack)-1])
	}
	p.stack = append(p.stack, name)
	p.show(name)
}

// Pop removes the top page and shows the one below it. It returns the popped
// page, or "" on an empty stack.
func (p *Pages) Pop() string {
	if len(p.stack) == 0 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	if len(p.stack) == 0 {
		p.notify()
		return top
	}
	p.show(p.stack[len(p.stack)-1])
	return top
}

// Current returns the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Contains reports whether name is anywhere on the stack.
func (p *Pages) Contains(name string) bool {
	return slices.Contains(p.stack, name)
}

// Depth returns the stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack down to a single page.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

// Trail returns the stack with titles applied, bottom first.
func (p *Pages) Trail() []string {
	trail := make([]string, len(p.stack))
	for i, n := range p.stack {
		if t, ok := p.titles[n]; ok {
			trail[i] = t
		} else {
			trail[i] = n
		}
	}
	return trail
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	p.notify()
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Trail())
	}
}
