// Package flash accumulates a FASTBOOT_DOWNLOAD byte stream into an
// image buffer. Per spec §4.7, the zero-length FASTBOOT_DOWNLOAD
// sentinel that closes the transfer also triggers the boot against the
// accumulated buffer, matching cdba-server.c's msg_fastboot_download.
package flash
