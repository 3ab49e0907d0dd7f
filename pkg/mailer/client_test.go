package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSuccess(t *testing.T) {
	var gotBody sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient("sg-test", "notify@coursetrak.io", WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.Send(context.Background(), Message{
		To:      "ops@example.com",
		Subject: "Class updated",
		Body:    "<p>Class A changed</p>",
		Headers: map[string]string{"X-Entity-Ref": "event-42"},
	})
	require.NoError(t, err)

	require.Len(t, gotBody.Personalizations, 1)
	assert.Equal(t, "ops@example.com", gotBody.Personalizations[0].To[0].Email)
	assert.Equal(t, "notify@coursetrak.io", gotBody.From.Email)
	assert.Equal(t, "Class updated", gotBody.Subject)
	assert.Equal(t, "event-42", gotBody.Headers["X-Entity-Ref"])
}

func TestSendNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("sg-test", "notify@coursetrak.io", WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.Send(context.Background(), Message{To: "ops@example.com", Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendValidation(t *testing.T) {
	client, err := NewClient("sg-test", "notify@coursetrak.io")
	require.NoError(t, err)

	require.Error(t, client.Send(context.Background(), Message{Subject: "x"}))
	require.Error(t, client.Send(context.Background(), Message{To: "ops@example.com"}))
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "from@x.io"); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := NewClient("key", " "); err == nil {
		t.Fatal("expected error for missing from")
	}
}
