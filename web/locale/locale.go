// Package locale translates user-facing router messages with go-i18n.
package locale

import (
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/viewer360/viewer360/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed translation/*
var i18nFS embed.FS

var (
	bundleOnce sync.Once
	i18nBundle *i18n.Bundle
	bundleErr  error
)

const (
	localizerKey = "localizer"
	defaultLang  = "en-US"
)

// InitLocalizer parses the embedded translation files. It is safe to call more
// than once.
func InitLocalizer() error {
	bundleOnce.Do(func() {
		b := i18n.NewBundle(language.MustParse(defaultLang))
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		bundleErr = parseTranslationFiles(i18nFS, b)
		i18nBundle = b
	})
	return bundleErr
}

func createTemplateData(params []string, separator ...string) map[string]any {
	sep := "=="
	if len(separator) > 0 {
		sep = separator[0]
	}

	templateData := make(map[string]any)
	for _, param := range params {
		parts := strings.SplitN(param, sep, 2)
		if len(parts) == 2 {
			templateData[parts[0]] = parts[1]
		}
	}
	return templateData
}

// Localize renders key with the given localizer. Params are "name==value"
// pairs. The key itself is returned when no translation exists.
func Localize(localizer *i18n.Localizer, key string, params ...string) string {
	if localizer == nil {
		return key
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		logger.Debugf("no translation for %q: %v", key, err)
		return key
	}
	return msg
}

// I18n translates key for the request's language.
func I18n(c *gin.Context, key string, params ...string) string {
	v, ok := c.Get(localizerKey)
	if !ok {
		return Localize(defaultLocalizer(), key, params...)
	}
	localizer, _ := v.(*i18n.Localizer)
	return Localize(localizer, key, params...)
}

func defaultLocalizer() *i18n.Localizer {
	if err := InitLocalizer(); err != nil {
		return nil
	}
	return i18n.NewLocalizer(i18nBundle, defaultLang)
}

// LocalizerMiddleware picks the language from the "lang" cookie or the
// Accept-Language header.
func LocalizerMiddleware() gin.HandlerFunc {
	if err := InitLocalizer(); err != nil {
		logger.Warning("i18n load failed:", err)
	}
	return func(c *gin.Context) {
		var lang string
		if cookie, err := c.Request.Cookie("lang"); err == nil {
			lang = cookie.Value
		} else {
			lang = c.GetHeader("Accept-Language")
		}
		c.Set(localizerKey, i18n.NewLocalizer(i18nBundle, lang, defaultLang))
		c.Next()
	}
}

func parseTranslationFiles(fsys fs.FS, bundle *i18n.Bundle) error {
	return fs.WalkDir(fsys, "translation", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = bundle.ParseMessageFileBytes(data, path)
		return err
	})
}
