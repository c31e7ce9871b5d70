// package ui implements the interactive terminal frontend for sync runs.
package ui
