// Package device implements the firmware end of the L0 protocol: the
// packet router and the text console, driving an injected motor
// controller.
package device
