package session

import "strings"

type PathClass int

const (
	Public PathClass = iota
	Protected
	Login
)

func (pc PathClass) String() string {
	switch pc {
	case Protected:
		return "protected"
	case Login:
		return "login"
	default:
		return "public"
	}
}

// Guarded reports whether requests of this class need a session lookup.
func (pc PathClass) Guarded() bool {
	return pc != Public
}

type Action int

const (
	PassThrough Action = iota
	PassThroughRefreshed
	Redirect
)

type (
	Rules struct {
		ProtectedPrefixes []string
		LoginPath         string
		RootPath          string
	}

	// State is what the guard knows about the request once the provider was consulted.
	State struct {
		Authenticated bool
	}

	Decision struct {
		Action   Action
		Location string
	}
)

// Classify tells whether path is the login path, a protected path or a public one.
// Prefixes match whole segments: "/dashboard" matches "/dashboard/x" but not "/dashboards".
func (r Rules) Classify(path string) PathClass {
	path = cleanPath(path)
	if path == cleanPath(r.LoginPath) {
		return Login
	}
	for _, prefix := range r.ProtectedPrefixes {
		prefix = cleanPath(prefix)
		if prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return Protected
		}
	}
	return Public
}

// Decide maps a path class and the session state to what the guard must do.
func (r Rules) Decide(class PathClass, state State) Decision {
	switch class {
	case Protected:
		if !state.Authenticated {
			return Decision{Action: Redirect, Location: r.LoginPath}
		}
		return Decision{Action: PassThroughRefreshed}
	case Login:
		if state.Authenticated {
			return Decision{Action: Redirect, Location: r.rootPath()}
		}
		return Decision{Action: PassThroughRefreshed}
	default:
		return Decision{Action: PassThrough}
	}
}

func (r Rules) rootPath() string {
	if r.RootPath == "" {
		return "/"
	}
	return r.RootPath
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
