package calling

import (
	"sync"

	"github.com/mewmew/nc/ir"
)

// HookContext is the information a HookSelector needs to decide, on a given
// dataflow execution, which hook (if any) should be installed at its site
// (spec.md §4.4).
type HookContext struct {
	// Convention is the current calling convention in effect.
	Convention *Convention
	// Signatures is the shared signatures snapshot (read-only here; the
	// dataflow analyzer only ever reads it during step 5).
	Signatures *Signatures
	// StackArgSize is the computed size of stack-passed arguments at this
	// call site, or nil if not yet known.
	StackArgSize *int64
	// IsReturnJump reports whether the anchoring jump is currently
	// classified as a function return (return-hook sites only).
	IsReturnJump bool
}

// siteKind discriminates the three hook kinds for cache-key purposes.
type siteKind int

const (
	siteEntry siteKind = iota
	siteCall
	siteReturn
)

type hookKey struct {
	kind         siteKind
	convName     string
	callee       ir.CalleeID
	sigVersion   int
	stackArgSize int64
	hasStackSize bool
}

// HookManager caches built patch templates by key and exposes the three
// hook selector constructors the orchestrator installs as Callback
// closures. The cache is read-mostly; rare insertions are guarded by a
// single mutex covering the whole cache (spec.md §5).
//
// A cached entry is a template, never itself spliced into a block: a
// *Patch carries its own single block/inserted bookkeeping, so two return
// (or call) sites sharing a callee — the ordinary case for any function
// with more than one return jump — would otherwise be handed the very
// same *Patch and panic the second time it's inserted. Each selector
// clones the template's statements into a fresh Patch of its own before
// splicing, and tells templates apart from what it has actually installed
// by comparing hookKey, not pointer identity.
type HookManager struct {
	mu    sync.Mutex
	cache map[hookKey]*Patch
}

// NewHookManager returns an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{cache: make(map[hookKey]*Patch)}
}

func (m *HookManager) getOrBuild(key hookKey, build func() *Patch) *Patch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.cache[key]; ok {
		return p
	}
	p := build()
	m.cache[key] = p
	return p
}

// clonePatch returns a fresh, uninserted Patch carrying deep copies of
// template's statements, so installing it can never collide with another
// anchor installing the same cached template.
func clonePatch(template *Patch) *Patch {
	stmts := make([]ir.Statement, len(template.Statements))
	for i, s := range template.Statements {
		stmts[i] = s.Clone()
	}
	return NewPatch(stmts)
}

// installedHook tracks the hook currently spliced at one anchor, keyed by
// the HookContext state that produced it, so a selector invoked again with
// unchanged context is a no-op instead of removing and resplicing an
// identical patch every dataflow pass.
type installedHook struct {
	hasKey bool
	key    hookKey
	patch  *Patch
}

// set splices desired in place of whatever h currently holds, unless key
// already matches what's installed. Reports whether anything changed.
func (h *installedHook) set(key hookKey, desired *Patch, anchor ir.Statement, insertAfter bool) bool {
	if h.hasKey && h.key == key {
		return false
	}
	if h.hasKey {
		h.patch.Remove()
	}
	if insertAfter {
		desired.InsertAfter(anchor)
	} else {
		desired.InsertBefore(anchor)
	}
	h.hasKey, h.key, h.patch = true, key, desired
	return true
}

// clear unsplices whatever h currently holds, if anything. Reports whether
// anything changed.
func (h *installedHook) clear() bool {
	if !h.hasKey {
		return false
	}
	h.patch.Remove()
	h.hasKey, h.key, h.patch = false, hookKey{}, nil
	return true
}

// EntrySelector returns the callback closure installed at a function's
// entry hook site. anchor is the statement the hook is spliced after (the
// Callback statement itself, which stays in place as a permanent anchor).
func (m *HookManager) EntrySelector(anchor ir.Statement, callee ir.CalleeID) HookSelector {
	var cur installedHook
	return func(ctx *HookContext) bool {
		sig, _ := ctx.Signatures.FunctionSignature(callee)
		key := hookKey{kind: siteEntry, convName: ctx.Convention.Name, callee: callee, sigVersion: ctx.Signatures.Version()}
		if cur.hasKey && cur.key == key {
			return false
		}
		template := m.getOrBuild(key, func() *Patch {
			return BuildEntryHook(ctx.Convention, sig).Patch
		})
		return cur.set(key, clonePatch(template), anchor, true)
	}
}

// CallSelector returns the callback closure installed at a call hook site.
func (m *HookManager) CallSelector(anchor ir.Statement, callee ir.CalleeID) HookSelector {
	var cur installedHook
	return func(ctx *HookContext) bool {
		callSig, _ := ctx.Signatures.CallSignature(anchor)
		key := hookKey{
			kind: siteCall, convName: ctx.Convention.Name, callee: callee,
			sigVersion: ctx.Signatures.Version(),
		}
		if ctx.StackArgSize != nil {
			key.stackArgSize = *ctx.StackArgSize
			key.hasStackSize = true
		}
		if cur.hasKey && cur.key == key {
			return false
		}
		template := m.getOrBuild(key, func() *Patch {
			return BuildCallHook(ctx.Convention, callSig, ctx.StackArgSize).Patch
		})
		return cur.set(key, clonePatch(template), anchor, true)
	}
}

// ReturnSelector returns the callback closure installed at a return hook
// site. It only installs a hook while IsReturnJump holds; otherwise any
// previously installed hook is removed.
func (m *HookManager) ReturnSelector(anchor ir.Statement, callee ir.CalleeID) HookSelector {
	var cur installedHook
	return func(ctx *HookContext) bool {
		if !ctx.IsReturnJump {
			return cur.clear()
		}
		sig, _ := ctx.Signatures.FunctionSignature(callee)
		key := hookKey{kind: siteReturn, convName: ctx.Convention.Name, callee: callee, sigVersion: ctx.Signatures.Version()}
		if cur.hasKey && cur.key == key {
			return false
		}
		template := m.getOrBuild(key, func() *Patch {
			return BuildReturnHook(ctx.Convention, sig)
		})
		return cur.set(key, clonePatch(template), anchor, false)
	}
}

// HookSelector is the closure type installed behind an ir.Callback
// statement (spec.md §9). The dataflow analyzer invokes it with the current
// context on every execution of the callback statement; it returns whether
// it changed the installed hook, in which case the analyzer must re-run the
// enclosing block.
type HookSelector func(ctx *HookContext) (changed bool)
