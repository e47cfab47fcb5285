// Package oauth implements the Asana OAuth2 authorization flow: building
// authorize URLs for users and handling the redirect callback.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	slackapi "github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"asanabot.arpa/bot/store"
)

const (
	asanaAuthURL  = "https://app.asana.com/-/oauth_authorize"
	asanaTokenURL = "https://app.asana.com/-/oauth_token"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthURL/TokenURL override the Asana endpoints, used by tests.
	AuthURL  string
	TokenURL string
}

type OAuth struct {
	log    *zap.Logger
	config Config
	store  *store.Store
	oauth2 *oauth2.Config
	poster poster
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

func NewOAuth(log *zap.Logger, config Config, st *store.Store) *OAuth {
	authURL := config.AuthURL
	if authURL == "" {
		authURL = asanaAuthURL
	}
	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = asanaTokenURL
	}
	return &OAuth{
		log:    log,
		config: config,
		store:  st,
		oauth2: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
	}
}

// Start wires the confirmation message poster once Slack is authenticated.
func (o *OAuth) Start(p poster) {
	o.poster = p
}

// AuthorizeURL builds the URL a user visits to grant access. The state
// carries the requesting user and originating room so the callback can store
// the token and confirm in the right place.
func (o *OAuth) AuthorizeURL(userID, roomID string) string {
	return o.oauth2.AuthCodeURL(encodeState(userID, roomID))
}

// HandleCallback is the OAuth redirect endpoint.
func (o *OAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		o.log.Warn("OAuth authorization denied.", zap.String("error", errParam))
		renderPage(w, http.StatusOK, "Authorization cancelled", "You can close this window and try /asana auth again.")
		return
	}

	userID, roomID, err := decodeState(query.Get("state"))
	if err != nil {
		o.log.Warn("OAuth callback with malformed state.", zap.Error(err))
		renderPage(w, http.StatusBadRequest, "Invalid request", "The authorization state could not be read.")
		return
	}

	code := query.Get("code")
	if code == "" {
		renderPage(w, http.StatusBadRequest, "Invalid request", "Missing authorization code.")
		return
	}

	token, err := o.oauth2.Exchange(r.Context(), code)
	if err != nil {
		o.log.Error("OAuth code exchange failed.", zap.Error(err))
		renderPage(w, http.StatusBadGateway, "Authorization failed", "Asana did not accept the authorization code. Please try again.")
		return
	}

	// Overwrites any previous token: at most one live token per user.
	err = o.store.PutToken(r.Context(), store.UserToken{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	})
	if err != nil {
		o.log.Error("Failed to persist user token.", zap.String("user", userID), zap.Error(err))
		renderPage(w, http.StatusInternalServerError, "Authorization failed", "Your token could not be stored. Please try again.")
		return
	}

	o.log.Info("User authorized with Asana.", zap.String("user", userID))
	o.confirm(r.Context(), userID, roomID)
	renderPage(w, http.StatusOK, "Connected to Asana", "You can close this window and return to Slack.")
}

func (o *OAuth) confirm(ctx context.Context, userID, roomID string) {
	if o.poster == nil || roomID == "" {
		return
	}
	text := fmt.Sprintf("<@%s> connected their Asana account. ✅", userID)
	if _, _, err := o.poster.PostMessageContext(ctx, roomID, slackapi.MsgOptionText(text, false)); err != nil {
		o.log.Warn("Failed to post authorization confirmation.",
			zap.String("room", roomID),
			zap.Error(err),
		)
	}
}

// encodeState packs "<userID>_<roomID>_<nonce>", omitting the room segment
// when the flow did not start from a channel.
func encodeState(userID, roomID string) string {
	nonce := uuid.NewString()
	if roomID == "" {
		return userID + "_" + nonce
	}
	return userID + "_" + roomID + "_" + nonce
}

func decodeState(state string) (userID, roomID string, err error) {
	parts := strings.Split(state, "_")
	switch len(parts) {
	case 2:
		userID = parts[0]
	case 3:
		userID = parts[0]
		roomID = parts[1]
	default:
		return "", "", fmt.Errorf("unexpected state format")
	}
	if userID == "" {
		return "", "", fmt.Errorf("state is missing the user segment")
	}
	return userID, roomID, nil
}

func renderPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h2>%s</h2><p>%s</p></body></html>", title, title, body)
}
