package convert

import (
	"net/http"
	"net/url"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

const emptyRedirectMessage = "Redirect URL cannot be null or empty..."

// RedirectValidate sends the browser back to the app after an email
// validation attempt.
func RedirectValidate(w http.ResponseWriter, r *http.Request, redirectURL string, ok bool) {
	query := url.Values{}
	if ok {
		query.Set("is_validated", "true")
	} else {
		query.Set("is_validated", "false")
	}
	redirect(w, r, redirectURL, query)
}

// RedirectReset sends the browser back to the app after a reset link was
// followed. The email is only included on success.
func RedirectReset(w http.ResponseWriter, r *http.Request, redirectURL string, ok bool, email string) {
	query := url.Values{}
	if ok {
		query.Set("is_reset", "true")
		query.Set("to_reset", email)
	} else {
		query.Set("is_reset", "false")
	}
	redirect(w, r, redirectURL, query)
}

func redirect(w http.ResponseWriter, r *http.Request, redirectURL string, query url.Values) {
	if redirectURL == "" {
		WriteError(w, r, apperrors.New(apperrors.ErrCodeInternal, emptyRedirectMessage))
		return
	}

	target, err := url.Parse(redirectURL)
	if err != nil {
		WriteError(w, r, apperrors.Internal(err, "invalid redirect URL"))
		return
	}
	existing := target.Query()
	for k, vs := range query {
		existing[k] = vs
	}
	target.RawQuery = existing.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}
