package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "crewpulse/pkg/domain"
)

func TestIDsMarshalAsUUIDStrings(t *testing.T) {
	raw := uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")

	payload := struct {
		Org      id.OrgID      `json:"org_id"`
		Employee id.EmployeeID `json:"employee_id"`
		Post     id.PostID     `json:"post_id"`
	}{
		Org:      id.OrgID(raw),
		Employee: id.EmployeeID(raw),
		Post:     id.PostID(raw),
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"org_id":      "3b241101-e2bb-4255-8caf-4136c566a962",
		"employee_id": "3b241101-e2bb-4255-8caf-4136c566a962",
		"post_id":     "3b241101-e2bb-4255-8caf-4136c566a962"
	}`, string(data))

	var decoded struct {
		Org id.OrgID `json:"org_id"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.Org, decoded.Org)

	t.Run("garbage text rejected", func(t *testing.T) {
		var out id.PostID
		assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &out))
	})

	t.Run("nil ids drop out under omitzero", func(t *testing.T) {
		data, err := json.Marshal(struct {
			Department id.DepartmentID `json:"department_id,omitzero"`
		}{})
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})
}
