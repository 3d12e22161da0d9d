// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolize

import "strings"

// FrameClass is a closed classification of resolved frames, derived from
// name patterns and image identity rather than anything authoritative in
// the debug info. Heuristic by nature.
type FrameClass int

const (
	// ClassNormal is ordinary user or library code.
	ClassNormal FrameClass = iota
	// ClassRuntimeFailure is a language-runtime failure frame: panic and
	// fault machinery, assertion aborts.
	ClassRuntimeFailure
	// ClassThunk is a compiler-generated adapter with no source of its
	// own: method-value wrappers, defer wrappers, C++ adjustor thunks.
	ClassThunk
	// ClassSystem is platform code: the vdso, the dynamic loader, libc,
	// the language runtime's internals.
	ClassSystem
)

func (c FrameClass) String() string {
	switch c {
	case ClassNormal:
		return "normal"
	case ClassRuntimeFailure:
		return "runtime failure"
	case ClassThunk:
		return "thunk"
	case ClassSystem:
		return "system"
	}
	return "bad class"
}

var runtimeFailureNames = []string{
	"runtime.throw",
	"runtime.fatal",
	"runtime.gopanic",
	"runtime.sigpanic",
	"runtime.abort",
	"abort",
	"__assert_fail",
	"rust_panic",
	"__stack_chk_fail",
}

var systemImagePrefixes = []string{
	"libc.so",
	"libc-",
	"libpthread",
	"ld-linux",
	"ld-musl",
	"[vdso]",
}

// Classify buckets a resolved symbol. The checks run most-specific first:
// a panic frame inside the runtime is a failure frame, not merely system
// code.
func Classify(sym *Symbol) FrameClass {
	if sym == nil {
		return ClassNormal
	}
	name := sym.Name()
	for _, fail := range runtimeFailureNames {
		if name == fail || strings.HasPrefix(name, fail+".") {
			return ClassRuntimeFailure
		}
	}
	if strings.HasPrefix(name, "runtime.panic") {
		return ClassRuntimeFailure
	}
	if isThunkName(sym.Raw, name) {
		return ClassThunk
	}
	if strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "runtime/") {
		return ClassSystem
	}
	if img := sym.Image; img != nil {
		for _, prefix := range systemImagePrefixes {
			if strings.HasPrefix(img.Name, prefix) {
				return ClassSystem
			}
		}
	}
	return ClassNormal
}

func isThunkName(raw, name string) bool {
	// Go method-value and defer wrappers.
	if strings.HasSuffix(name, "-fm") || strings.Contains(name, ".deferwrap") {
		return true
	}
	// C++ covariant-return and virtual adjustor thunks.
	if strings.HasPrefix(raw, "_ZThn") || strings.HasPrefix(raw, "_ZTv") {
		return true
	}
	return strings.Contains(name, "$thunk")
}
