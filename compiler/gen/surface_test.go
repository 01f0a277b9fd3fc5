package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceIncludes(t *testing.T) {
	set := mustBuild(t, widgetDoc+deactivateDoc)

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"everything", []string{"*"}, set.Names()},
		{"entity wildcard", []string{"Widget.*"}, set.Names()},
		{"other entity", []string{"Order.*"}, nil},
		{"operation name", []string{"Widget.Read", "Widget.Deactivate"}, []string{"Read", "Deactivate"}},
		{"kind across entities", []string{"*.QueryByIndex"}, []string{"QueryByOwnerId"}},
		{"field name", []string{"getWidget"}, []string{"Read"}},
		{"qualified field name", []string{"Widget.queryWidgetsByOwnerId"}, []string{"QueryByOwnerId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Surface{Name: "s", AuthMode: AuthAPIKey, Operations: tt.patterns}
			var got []string
			for _, op := range set.Operations() {
				if s.Includes(op) {
					got = append(got, op.Name)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSurfaceNames(t *testing.T) {
	c := Combined()
	assert.True(t, c.IsCombined())
	assert.Equal(t, CombinedSurface, c.DisplayName())

	s := Surface{Name: "admin", AuthMode: AuthUserPools, Operations: []string{"*"}}
	assert.False(t, s.IsCombined())
	assert.Equal(t, "graphql/admin/schema.graphql", s.SchemaPath())
	assert.Equal(t, "AdminApi", s.ConstructName())
	require.NoError(t, s.Validate())
}

func TestSurfaceProviders(t *testing.T) {
	_, ok := Combined().Providers()
	assert.False(t, ok)

	s := Surface{Name: "public", AuthMode: AuthAPIKey, Operations: []string{"*"}, Auth: []AuthDirective{{Provider: AuthAPIKey}}}
	got, ok := s.Providers()
	require.True(t, ok)
	assert.Equal(t, map[AuthProvider]bool{AuthAPIKey: true}, got)

	s.Auth = []AuthDirective{}
	got, ok = s.Providers()
	require.True(t, ok, "an empty override still overrides")
	assert.Empty(t, got)
}

func TestAuthProvider(t *testing.T) {
	tests := []struct {
		p         AuthProvider
		directive string
		mode      string
	}{
		{AuthAPIKey, "aws_api_key", "API_KEY"},
		{AuthIAM, "aws_iam", "AWS_IAM"},
		{AuthUserPools, "aws_cognito_user_pools", "AMAZON_COGNITO_USER_POOLS"},
		{AuthOIDC, "aws_oidc", "OPENID_CONNECT"},
		{AuthLambda, "aws_lambda", "AWS_LAMBDA"},
	}
	for _, tt := range tests {
		assert.True(t, tt.p.Valid())
		assert.Equal(t, tt.directive, tt.p.Directive())
		assert.Equal(t, tt.mode, tt.p.Mode())
	}
	assert.False(t, AuthProvider("basic").Valid())
}

func TestTypeRefKeyable(t *testing.T) {
	tests := []struct {
		ref  TypeRef
		want bool
	}{
		{TypeRef{Name: ScalarID}, true},
		{TypeRef{Name: ScalarInt}, true},
		{TypeRef{Name: "WidgetStatus", Kind: KindEnum}, true},
		{TypeRef{Name: ScalarBoolean}, false},
		{TypeRef{Name: ScalarAWSJSON}, false},
		{TypeRef{Name: ScalarString, List: true}, false},
		{TypeRef{Name: "Widget", Kind: KindEntity}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ref.Keyable(), tt.ref.String())
	}
	assert.Equal(t, "N", string(TypeRef{Name: ScalarAWSTimestamp}.KeyType()))
	assert.Equal(t, "S", string(TypeRef{Name: ScalarID}.KeyType()))
}
