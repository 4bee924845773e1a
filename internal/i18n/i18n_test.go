package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "ReasonExpired"); got != "The time for this exam has run out." {
		t.Errorf("T(ReasonExpired) = %q", got)
	}
	if got := T(ctx, "ReasonNotYetAvailable"); got != "This exam is not available yet." {
		t.Errorf("T(ReasonNotYetAvailable) = %q", got)
	}
}

func TestTranslateFrench(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "ReasonAlreadySubmitted"); got != "Vous avez déjà remis cet examen." {
		t.Errorf("T(ReasonAlreadySubmitted) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "AttemptsCreated", 1); got != "1 attempt created." {
		t.Errorf("Tp(AttemptsCreated, 1) = %q", got)
	}
	if got := Tp(ctx, "AttemptsCreated", 5); got != "5 attempts created." {
		t.Errorf("Tp(AttemptsCreated, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "GradeSummary", map[string]any{"Grade": "B+", "Percentage": 72.5})
	if got != "Grade B+ with 72.5%" {
		t.Errorf("Td(GradeSummary) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key back", got)
	}
}

func TestMatch(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"fr-FR,fr;q=0.9,en;q=0.8", "fr"},
		{"de-DE", "en"},
		{"en-GB", "en"},
		{"not a header;;", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := Match(tt.header).String(); got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ReasonCancelled")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "Cette session d'examen a été annulée." {
		t.Errorf("translated = %q", got)
	}
	if cl := rec.Header().Get("Content-Language"); cl != "fr" {
		t.Errorf("Content-Language = %q, want fr", cl)
	}
}
