// Package logger — единый вывод логов oe-bridge с префиксом и учётом quiet.
package logger

import "log"

// Quiet при true отключает информационные сообщения (Info); Error выводится всегда.
var Quiet bool

// Info выводит сообщение с префиксом "oe-bridge: ", если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf("oe-bridge: "+format, args...)
}

// Error выводит сообщение об ошибке с префиксом "oe-bridge: " всегда.
func Error(format string, args ...interface{}) {
	log.Printf("oe-bridge: "+format, args...)
}
