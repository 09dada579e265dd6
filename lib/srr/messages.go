// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Caller-facing messages. The English text is the message key.
const (
	msgEmptySave        = "No feature requested for save"
	msgEmptyRestore     = "No feature supplied for restore"
	msgResetUnsupported = "Reset configuration is not implemented yet"
	msgUnknownFeature   = "Feature (%s) is not managed by this agent"
	msgSaveFailed       = "Save configuration for: (%s) failed"
	msgRestoreFailed    = "Restore configuration for: (%s) failed"
	msgSaveAccess       = "Save configuration for: (%s) failed, access right issue!"
	msgRestoreAccess    = "Restore configuration for: (%s) failed, access right issue!"
	msgSaveStructure    = "Save configuration for: (%s) failed, the configuration structure is not supported"
	msgRestoreStructure = "Restore configuration for: (%s) failed, the configuration data is invalid"
	msgVersion          = "Config version (%s) is not compatible with the restore version request: (%s)"
	msgServiceState     = "Restore configuration for: (%s) was written but the service state could not be applied"
	msgServiceQuery     = "Save configuration for: (%s) failed, the service state could not be read"
)

var allMessages = []string{
	msgEmptySave, msgEmptyRestore, msgResetUnsupported, msgUnknownFeature,
	msgSaveFailed, msgRestoreFailed, msgSaveAccess, msgRestoreAccess,
	msgSaveStructure, msgRestoreStructure, msgVersion, msgServiceState,
	msgServiceQuery,
}

var frenchMessages = map[string]string{
	msgEmptySave:        "Aucune fonctionnalité demandée pour la sauvegarde",
	msgEmptyRestore:     "Aucune fonctionnalité fournie pour la restauration",
	msgResetUnsupported: "La réinitialisation de la configuration n'est pas encore implémentée",
	msgUnknownFeature:   "La fonctionnalité (%s) n'est pas gérée par cet agent",
	msgSaveFailed:       "La sauvegarde de la configuration pour : (%s) a échoué",
	msgRestoreFailed:    "La restauration de la configuration pour : (%s) a échoué",
	msgSaveAccess:       "La sauvegarde de la configuration pour : (%s) a échoué, problème de droits d'accès !",
	msgRestoreAccess:    "La restauration de la configuration pour : (%s) a échoué, problème de droits d'accès !",
	msgSaveStructure:    "La sauvegarde de la configuration pour : (%s) a échoué, la structure de la configuration n'est pas prise en charge",
	msgRestoreStructure: "La restauration de la configuration pour : (%s) a échoué, les données de configuration sont invalides",
	msgVersion:          "La version de configuration (%s) n'est pas compatible avec la version de restauration demandée : (%s)",
	msgServiceState:     "La configuration pour : (%s) a été écrite mais l'état du service n'a pas pu être appliqué",
	msgServiceQuery:     "La sauvegarde de la configuration pour : (%s) a échoué, l'état du service n'a pas pu être lu",
}

var (
	messageCatalog catalog.Catalog
	// English first: it is the match for anything unsupported.
	supported     = []language.Tag{language.English, language.French}
	languageMatch = language.NewMatcher(supported)
)

func init() {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, key := range allMessages {
		if err := builder.SetString(language.English, key, key); err != nil {
			panic("srr: building message catalog: " + err.Error())
		}
	}
	for key, translation := range frenchMessages {
		if err := builder.SetString(language.French, key, translation); err != nil {
			panic("srr: building message catalog: " + err.Error())
		}
	}
	messageCatalog = builder
}

// Localizer renders caller-facing messages in one language.
type Localizer struct {
	printer *message.Printer
}

// NewLocalizer picks the closest supported language for the BCP 47
// tag in lang. Unknown or empty tags select English.
func NewLocalizer(lang string) *Localizer {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, index, _ := languageMatch.Match(parsed)
			tag = supported[index]
		}
	}
	return &Localizer{printer: message.NewPrinter(tag, message.Catalog(messageCatalog))}
}

// Sprintf renders the message with key in the localizer's language.
func (l *Localizer) Sprintf(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Languages lists the supported message languages.
func Languages() []string {
	names := make([]string, len(supported))
	for i, tag := range supported {
		names[i] = tag.String()
	}
	return names
}
