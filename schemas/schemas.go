// Package schemas хранит JSON-схемы сообщений и команд; файлы вшиваются в бинарник.
package schemas

import "embed"

// FS содержит events/<имя-события>/v<N>.json и commands/<имя-команды>/v<N>.json
//
//go:embed events commands
var FS embed.FS
