// Package view is the terminal dashboard. A Bubble Tea program renders one
// row per virtual machine and turns key presses into actions for the
// reconciliation loop; Sink feeds the loop's events back into the program.
package view
