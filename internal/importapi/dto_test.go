package importapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAcceptsAnyParseableUUID(t *testing.T) {
	lower := "6f1c7c1e-8a4b-4c1e-9d7e-2f4f0d4b1a11"
	for _, id := range []string{lower, strings.ToUpper(lower), "{" + lower + "}", "urn:uuid:" + lower} {
		assert.NoError(t, check(applyTemplateRequest{TemplateID: id}), id)
		assert.NoError(t, check(resolveRequest{TemplateID: &id}), id)
		assert.NoError(t, check(saveTemplateRequest{Name: "weekly", SessionID: &id}), id)
	}
}

func TestCheckRejectsMalformedUUID(t *testing.T) {
	err := check(applyTemplateRequest{TemplateID: "not-a-uuid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TemplateID: failed anyuuid")

	assert.Error(t, check(applyTemplateRequest{}))
}
