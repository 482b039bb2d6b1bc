package shared

import "fmt"

// PayrollLockKey builds the redis key serialising payroll runs for a boat.
func PayrollLockKey(boatID fmt.Stringer) string {
	return fmt.Sprintf("payroll:boat:%s:lock", boatID)
}

// PaymentLockKey builds the redis key serialising payments to a sailor.
func PaymentLockKey(sailorID fmt.Stringer) string {
	return fmt.Sprintf("payroll:sailor:%s:payments", sailorID)
}
