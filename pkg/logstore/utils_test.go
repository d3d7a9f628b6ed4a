package logstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelsMapToString(t *testing.T) {
	got := LabelsMapToString(map[string]string{"zone": "yard", "instance_id": "101"}, "=")

	assert.Equal(t, `{instance_id="101", zone="yard"}`, got)
}

func TestStreamName(t *testing.T) {
	name, err := StreamName(map[string]string{InstanceLabel: "cam 7/../x"})
	require.NoError(t, err)

	assert.Equal(t, "instance_id_cam_7_.._x", name)
	assert.NotContains(t, name, "/")

	_, err = StreamName(nil)
	assert.ErrorIs(t, err, ErrNoLabels)
}
