package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govtrack/backend/internal/models"
)

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(models.Opportunity{ID: "o1", Title: "Clerk Recruitment", State: "WB", OfficialURL: "https://wb.gov.in/clerk"})
	require.Equal(t, "New Government Job in WB: Clerk Recruitment", msg.Body)
	require.Equal(t, "o1", msg.OpportunityID)
	require.Equal(t, "https://wb.gov.in/clerk", msg.URL)

	nationwide := BuildMessage(models.Opportunity{ID: "o2", Title: "SSC CGL"})
	require.Equal(t, "New Government Job in All India: SSC CGL", nationwide.Body)
}

func TestStreamArgs(t *testing.T) {
	args := streamArgs("push:notifications", 10, BuildMessage(models.Opportunity{ID: "o1", Title: "T", State: "Delhi", Qualification: "12th"}))
	require.Equal(t, "push:notifications", args.Stream)
	require.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "o1", values["opportunityId"])
	require.Equal(t, "12th", values["qualification"])
}

func TestLogNotifierNeverFails(t *testing.T) {
	require.NoError(t, NewLogNotifier(nil).Notify(context.Background(), models.Opportunity{ID: "o1"}))
}

func TestOpenWithoutRedisLogsOnly(t *testing.T) {
	n, closeFn, err := Open(context.Background(), "", "push:notifications", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.IsType(t, &LogNotifier{}, n)
	require.NoError(t, closeFn())
}

func TestOpenRejectsBadRedisURL(t *testing.T) {
	_, _, err := Open(context.Background(), "not a url", "push:notifications", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
