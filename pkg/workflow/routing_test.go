package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, maxRetries int) *Router {
	t.Helper()
	router, err := NewRouter([]Category{
		{Name: "Coding", Description: "software questions", Workflow: "coding-wf"},
		{Name: "General", Description: "everything else", Workflow: "general-wf"},
	}, "General", maxRetries)
	require.NoError(t, err)
	return router
}

func TestNewRouterValidation(t *testing.T) {
	_, err := NewRouter(nil, "general", 1)
	assert.Error(t, err)

	_, err = NewRouter([]Category{{Name: "coding"}}, "missing", 1)
	assert.Error(t, err)

	_, err = NewRouter([]Category{{Name: ""}}, "", 1)
	assert.Error(t, err)
}

func TestRouteExactMatchCaseNormalized(t *testing.T) {
	router := testRouter(t, 1)

	for _, output := range []string{"Coding", "coding", "CODING", "  coding  ", "coding\n"} {
		cat, err := router.Route(context.Background(), output, nil)
		require.NoError(t, err)
		assert.Equal(t, "Coding", cat.Name, "output %q", output)
	}
}

func TestRouteRetriesExactlyOnceThenFallsBack(t *testing.T) {
	router := testRouter(t, 1)

	reprompts := 0
	cat, err := router.Route(context.Background(), "underwater_basket_weaving", func(ctx context.Context) (string, error) {
		reprompts++
		return "still not a category", nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, reprompts)
	assert.Equal(t, "General", cat.Name)
	assert.Equal(t, "general-wf", cat.Workflow)
}

func TestRouteRetrySucceeds(t *testing.T) {
	router := testRouter(t, 1)

	cat, err := router.Route(context.Background(), "nonsense", func(ctx context.Context) (string, error) {
		return "coding", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Coding", cat.Name)
}

func TestRouteConfigurableRetryCount(t *testing.T) {
	router := testRouter(t, 3)

	reprompts := 0
	cat, err := router.Route(context.Background(), "nope", func(ctx context.Context) (string, error) {
		reprompts++
		return "nope again", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reprompts)
	assert.Equal(t, "General", cat.Name)
}

func TestRouteNegativeRetriesDefaultsToOne(t *testing.T) {
	router := testRouter(t, -1)

	reprompts := 0
	_, err := router.Route(context.Background(), "nope", func(ctx context.Context) (string, error) {
		reprompts++
		return "nope", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reprompts)
}

func TestRouteRepromptErrorFallsBack(t *testing.T) {
	router := testRouter(t, 1)

	cat, err := router.Route(context.Background(), "nope", func(ctx context.Context) (string, error) {
		return "", assert.AnError
	})
	require.NoError(t, err)
	assert.Equal(t, "General", cat.Name)
}

func TestRouteWithoutRepromptFallsBackImmediately(t *testing.T) {
	router := testRouter(t, 1)

	cat, err := router.Route(context.Background(), "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, "General", cat.Name)
}

func TestRouteCancelledContext(t *testing.T) {
	router := testRouter(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Route(ctx, "nope", func(ctx context.Context) (string, error) {
		t.Fatal("reprompt must not run after cancellation")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkflowFor(t *testing.T) {
	router := testRouter(t, 1)

	assert.Equal(t, "coding-wf", router.WorkflowFor("coding"))
	assert.Equal(t, "general-wf", router.WorkflowFor("unknown"))
}
