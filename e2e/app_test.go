package e2e

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type expense struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	Date           string  `json:"date"`
	Category       string  `json:"category"`
	RecurrenceFlag string  `json:"recurrence_flag"`
}

// E2ETestSuite drives the running server through Playwright's API client.
type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	request playwright.APIRequestContext
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	request, err := pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(appURL),
	})
	require.NoError(suite.T(), err, "could not create request context")
	suite.request = request
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.request != nil {
		suite.request.Dispose()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (suite *E2ETestSuite) login(username, password string) string {
	resp, err := suite.request.Post("/users/login", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": username, "password": password},
	})
	require.NoError(suite.T(), err, "login request failed")
	require.Equal(suite.T(), http.StatusOK, resp.Status(), "login rejected")

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(suite.T(), resp.JSON(&body))
	require.NotEmpty(suite.T(), body.AccessToken)
	return body.AccessToken
}

// newUser registers a fresh user and returns its token.
func (suite *E2ETestSuite) newUser() string {
	username := "user-" + uuid.NewString()[:8]
	resp, err := suite.request.Post("/users/register", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": username, "password": "pw-" + username},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusCreated, resp.Status())
	return suite.login(username, "pw-"+username)
}

func (suite *E2ETestSuite) create(token string, body map[string]any) expense {
	resp, err := suite.request.Post("/expenses", playwright.APIRequestContextPostOptions{
		Data:    body,
		Headers: bearer(token),
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusCreated, resp.Status())

	var e expense
	require.NoError(suite.T(), resp.JSON(&e))
	return e
}

func (suite *E2ETestSuite) TestHealth() {
	resp, err := suite.request.Get("/healthz")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.Status())
}

func (suite *E2ETestSuite) TestBootstrappedAdminCanLogin() {
	suite.login(adminUser, adminPassword)
}

func (suite *E2ETestSuite) TestLoginFailuresLookAlike() {
	wrong, err := suite.request.Post("/users/login", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": adminUser, "password": "nope"},
	})
	require.NoError(suite.T(), err)
	unknown, err := suite.request.Post("/users/login", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": "nobody-" + uuid.NewString(), "password": "nope"},
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), http.StatusUnauthorized, wrong.Status())
	assert.Equal(suite.T(), http.StatusUnauthorized, unknown.Status())
}

func (suite *E2ETestSuite) TestCompleteExpenseFlow() {
	token := suite.newUser()

	// Create
	lunch := suite.create(token, map[string]any{
		"amount": 12.50, "description": "Lunch Test", "date": "2024-07-28", "category": "Food",
	})
	assert.Equal(suite.T(), "2024-07-28T00:00:00+00:00", lunch.Date)
	suite.create(token, map[string]any{
		"amount": 15, "description": "Dinner", "date": "2024-07-29T19:00:00Z", "category": "Food",
	})
	suite.create(token, map[string]any{
		"amount": 5, "description": "Bus", "date": "2024-07-30", "category": "Travel", "recurrence_flag": "daily",
	})

	// List with filters
	resp, err := suite.request.Get("/expenses?category=Food", playwright.APIRequestContextGetOptions{Headers: bearer(token)})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())
	var food []expense
	require.NoError(suite.T(), resp.JSON(&food))
	require.Len(suite.T(), food, 2)
	assert.Equal(suite.T(), "Dinner", food[0].Description, "newest first")

	// Report
	resp, err = suite.request.Get("/reports/expenses", playwright.APIRequestContextGetOptions{Headers: bearer(token)})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())
	var totals map[string]float64
	require.NoError(suite.T(), resp.JSON(&totals))
	assert.Equal(suite.T(), map[string]float64{"Food": 27.5, "Travel": 5}, totals)

	// Partial update
	path := fmt.Sprintf("/expenses/%d", lunch.ID)
	resp, err = suite.request.Put(path, playwright.APIRequestContextPutOptions{
		Data:    map[string]any{"amount": 13},
		Headers: bearer(token),
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())
	var updated expense
	require.NoError(suite.T(), resp.JSON(&updated))
	assert.Equal(suite.T(), 13.0, updated.Amount)
	assert.Equal(suite.T(), "Lunch Test", updated.Description)

	// Export
	resp, err = suite.request.Get("/expenses/export?format=csv", playwright.APIRequestContextGetOptions{Headers: bearer(token)})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())
	text, err := resp.Text()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, strings.Count(text, "\n"), "header plus three rows")

	// Delete, then delete again
	resp, err = suite.request.Delete(path, playwright.APIRequestContextDeleteOptions{Headers: bearer(token)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNoContent, resp.Status())

	resp, err = suite.request.Delete(path, playwright.APIRequestContextDeleteOptions{Headers: bearer(token)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.Status())
}

func (suite *E2ETestSuite) TestUsersAreIsolated() {
	owner := suite.newUser()
	intruder := suite.newUser()

	e := suite.create(owner, map[string]any{
		"amount": 99, "description": "Private", "date": "2024-07-28", "category": "Secret",
	})
	path := fmt.Sprintf("/expenses/%d", e.ID)

	resp, err := suite.request.Get(path, playwright.APIRequestContextGetOptions{Headers: bearer(intruder)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.Status())

	resp, err = suite.request.Delete(path, playwright.APIRequestContextDeleteOptions{Headers: bearer(intruder)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.Status())

	resp, err = suite.request.Get("/expenses", playwright.APIRequestContextGetOptions{Headers: bearer(intruder)})
	require.NoError(suite.T(), err)
	var list []expense
	require.NoError(suite.T(), resp.JSON(&list))
	assert.Empty(suite.T(), list)

	resp, err = suite.request.Get(path, playwright.APIRequestContextGetOptions{Headers: bearer(owner)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.Status(), "owner still sees the record")
}

func (suite *E2ETestSuite) TestRequiresToken() {
	resp, err := suite.request.Get("/expenses")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.Status())
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
