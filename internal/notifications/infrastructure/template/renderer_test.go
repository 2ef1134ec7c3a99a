package template_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/template"
)

func TestTextRenderer_BuiltinTemplates(t *testing.T) {
	r, err := template.NewTextRenderer()
	require.NoError(t, err)

	for _, typ := range []domain.Type{
		domain.TypeSlotReserved, domain.TypeSlotApproved, domain.TypeSlotCancelled,
		domain.TypeAssignmentOffered, domain.TypeAssignmentConfirmed, domain.TypeAssignmentRejected,
		domain.TypeAssignmentCancelled, domain.TypeRescheduleRequested, domain.TypeRescheduleApproved,
		domain.TypeRescheduleDeclined, domain.TypeReminder,
	} {
		out, err := r.Render(context.Background(), domain.RenderRequest{
			Key:     string(typ),
			Context: map[string]any{"candidate_id": 9, "subject_id": 1, "start": "2026-05-04 10:00 Europe/Berlin"},
		})
		require.NoError(t, err, typ)
		assert.NotEmpty(t, out.Text, typ)
		assert.Equal(t, string(typ), out.Key)
		assert.Equal(t, template.DefaultVersion, out.Version)
	}
}

func TestTextRenderer_Render(t *testing.T) {
	r := template.MustNewTextRenderer()

	out, err := r.Render(context.Background(), domain.RenderRequest{
		Key:     string(domain.TypeSlotReserved),
		Context: map[string]any{"candidate_id": 9, "subject_id": 3, "start": "10:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Candidate 9 reserved slot 3 at 10:00. Please approve or release it.", out.Text)

	out, err = r.Render(context.Background(), domain.RenderRequest{
		Key:     string(domain.TypeSlotCancelled),
		Context: map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your slot was cancelled.", out.Text)
}

func TestTextRenderer_LocaleFallback(t *testing.T) {
	r := template.MustNewTextRenderer()
	require.NoError(t, r.Register("slot_cancelled.de", "2", `Ihr Termin wurde abgesagt.`))

	out, err := r.Render(context.Background(), domain.RenderRequest{Key: "slot_cancelled", Locale: "de"})
	require.NoError(t, err)
	assert.Equal(t, "Ihr Termin wurde abgesagt.", out.Text)
	assert.Equal(t, "slot_cancelled.de", out.Key)
	assert.Equal(t, "2", out.Version)

	out, err = r.Render(context.Background(), domain.RenderRequest{Key: "slot_cancelled", Locale: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "slot_cancelled", out.Key)
}

func TestTextRenderer_UnknownKey(t *testing.T) {
	r := template.MustNewTextRenderer()

	_, err := r.Render(context.Background(), domain.RenderRequest{Key: "nope"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	assert.Error(t, r.Register("broken", "1", "{{.x"))
}
