package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testRules = Rules{
	ProtectedPrefixes: []string{"/dashboard", "/profile"},
	LoginPath:         "/login",
	RootPath:          "/",
}

func TestRules_Classify(t *testing.T) {
	tests := []struct {
		path string
		want PathClass
	}{
		{path: "/", want: Public},
		{path: "", want: Public},
		{path: "/about", want: Public},
		{path: "/dashboards", want: Public},
		{path: "/profiles/x", want: Public},
		{path: "/dashboard", want: Protected},
		{path: "/dashboard/", want: Protected},
		{path: "/dashboard/students", want: Protected},
		{path: "/dashboard/api/students/42", want: Protected},
		{path: "/profile", want: Protected},
		{path: "/login", want: Login},
		{path: "/login/", want: Login},
		{path: "/logout", want: Public},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, testRules.Classify(tt.path))
		})
	}
}

func TestRules_Decide(t *testing.T) {
	tests := []struct {
		name  string
		class PathClass
		state State
		want  Decision
	}{
		{name: "public, anonymous", class: Public, want: Decision{Action: PassThrough}},
		{name: "public, authenticated", class: Public, state: State{Authenticated: true}, want: Decision{Action: PassThrough}},
		{name: "protected, anonymous", class: Protected, want: Decision{Action: Redirect, Location: "/login"}},
		{name: "protected, authenticated", class: Protected, state: State{Authenticated: true}, want: Decision{Action: PassThroughRefreshed}},
		{name: "login, anonymous", class: Login, want: Decision{Action: PassThroughRefreshed}},
		{name: "login, authenticated", class: Login, state: State{Authenticated: true}, want: Decision{Action: Redirect, Location: "/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testRules.Decide(tt.class, tt.state))
		})
	}
}

func TestRules_Decide_defaultRoot(t *testing.T) {
	r := Rules{ProtectedPrefixes: []string{"/dashboard"}, LoginPath: "/login"}
	assert.Equal(t, Decision{Action: Redirect, Location: "/"}, r.Decide(Login, State{Authenticated: true}))
}

func TestPathClass_Guarded(t *testing.T) {
	assert.False(t, Public.Guarded())
	assert.True(t, Protected.Guarded())
	assert.True(t, Login.Guarded())
}
