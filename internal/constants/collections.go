package constants

// Коллекции хранилища. Имена совпадают с тем, что читают сайт и админка.
const (
	CollectionDomRF     = "domrf"
	CollectionAvito     = "avito"
	CollectionDomClick  = "domclick"
	CollectionCanonical = "unified_houses"
)

// Теги происхождения канонической записи
const (
	SourceTagManual        = "manual"
	SourceTagMigration     = "migration"
	SourceTagUnified       = "unified"
	SourceTagManualPreview = "manual_preview"
)

const (
	CreatedByManual      = "manual"
	CreatedByScript      = "script"
	CreatedByMigration   = "migration_script"
	CreatedByAutoMatcher = "auto_matcher"
)

// UnnamedComplex - название, если ни один источник его не дал
const UnnamedComplex = "Без названия"
