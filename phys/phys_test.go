// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package phys

import (
	"testing"
)

const (
	mTol Meters = 1.0e-6
)

//////////////////////////////////////////////////////////////////////

type nearTestVec struct {
	m1  Meters
	m2  Meters
	tol Meters
	exp bool // expected MetersAreNear() result
}

func TestMetersAreNear(t *testing.T) {
	testTable := []nearTestVec{
		{m1: +0.00, m2: +0.10, tol: 0.05, exp: false},
		{m1: +0.00, m2: +0.10, tol: 0.10, exp: true},
		{m1: +0.00, m2: +0.10, tol: 0.20, exp: true},
		{m1: -0.00, m2: +0.00, tol: 0.00, exp: true},
		{m1: -0.04, m2: +0.05, tol: 0.10, exp: true},
		{m1: +0.04, m2: -0.05, tol: 0.10, exp: true},
		{m1: -0.05, m2: +0.05, tol: 0.10, exp: true},
		{m1: -0.06, m2: +0.06, tol: 0.10, exp: false},
		{m1: +0.10, m2: +0.19, tol: 0.10, exp: true},
		{m1: +0.10, m2: +0.20, tol: 0.10, exp: true},
		{m1: +0.10, m2: +0.21, tol: 0.10, exp: false},
		{m1: -0.10, m2: -0.19, tol: 0.10, exp: true},
		{m1: -0.10, m2: -0.20, tol: 0.10, exp: true},
		{m1: -0.10, m2: -0.21, tol: 0.10, exp: false},
		{m1: +0.0000001, m2: +0.00000011, tol: 0.0000000110, exp: true},
		{m1: +0.0000001, m2: +0.00000011, tol: 0.0000000101, exp: true},
		{m1: +0.0000001, m2: +0.00000011, tol: 0.0000000090, exp: false},
	}

	for i, vec := range testTable {
		got := MetersAreNear(vec.m1, vec.m2, vec.tol)
		if got != vec.exp {
			t.Errorf("Vec=%d MetersAreNear(%v, %v, %v) mismatch; exp=%v, got=%v", i, vec.m1, vec.m2, vec.tol, vec.exp, got)
		}
		// swap order of func args
		got2 := MetersAreNear(vec.m2, vec.m1, vec.tol)
		if got2 != vec.exp {
			t.Errorf("Vec=%d MetersAreNear(%v, %v, %v) mismatch; exp=%v, got=%v", i, vec.m2, vec.m1, vec.tol, vec.exp, got2)
		}
	}
}

//////////////////////////////////////////////////////////////////////

func TestSimTimeSeconds(t *testing.T) {
	testTable := []struct {
		t   SimTime
		exp float64
	}{
		{t: 0, exp: 0},
		{t: SimSecond, exp: 1},
		{t: 30 * SimSecond, exp: 30},
		{t: SimMillisecond * 500, exp: 0.5},
	}
	for i, vec := range testTable {
		got := vec.t.Seconds()
		if got != vec.exp {
			t.Errorf("Vec=%d SimTime(%v).Seconds() mismatch; exp=%v, got=%v", i, vec.t, vec.exp, got)
		}
		back := SimTimeFromSeconds(vec.exp)
		if back != vec.t {
			t.Errorf("Vec=%d SimTimeFromSeconds(%v) mismatch; exp=%v, got=%v", i, vec.exp, vec.t, back)
		}
	}
}

func TestClamp(t *testing.T) {
	testTable := []struct {
		v, lo, hi, exp MetersPerSec
	}{
		{v: 5, lo: 0, hi: 10, exp: 5},
		{v: -5, lo: 0, hi: 10, exp: 0},
		{v: 50, lo: 0, hi: 10, exp: 10},
	}
	for i, vec := range testTable {
		got := Clamp(vec.v, vec.lo, vec.hi)
		if got != vec.exp {
			t.Errorf("Vec=%d Clamp(%v,%v,%v) mismatch; exp=%v, got=%v", i, vec.v, vec.lo, vec.hi, vec.exp, got)
		}
	}
}
