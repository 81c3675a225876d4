package publication_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/publication"
)

func TestEventRoundTripKeepsSnapshots(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	evt := models.OpportunityWritten{
		OpportunityID: "o1",
		Before:        opp("o1", models.Unverified),
		After:         opp("o1", models.Verified),
		WrittenAt:     at,
	}

	msg, err := publication.Message(evt)
	require.NoError(t, err)
	require.Equal(t, []byte("o1"), msg.Key)

	got, err := publication.Decode(msg.Value)
	require.NoError(t, err)
	require.Equal(t, models.Unverified, got.Before.Verified)
	require.Equal(t, models.Verified, got.After.Verified)
	require.True(t, at.Equal(got.WrittenAt))
	require.True(t, publication.BecameVerified(got))
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	_, err := publication.Decode([]byte("{not json"))
	require.ErrorIs(t, err, publication.ErrMalformedEvent)

	_, err = publication.Decode([]byte(`{"after":{"verified":"verified"}}`))
	require.ErrorIs(t, err, publication.ErrMalformedEvent)

	_, err = publication.Encode(models.OpportunityWritten{})
	require.Error(t, err)
}
