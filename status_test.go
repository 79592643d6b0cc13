package chronos

import "testing"

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name  string
		state State
		at    Tick
		want  Status
	}{
		{name: "NothingKnown", state: State{}, want: StatusAlive},
		{name: "BeforeBirth", state: State{AttrBirthTick: Number(10)}, at: 9, want: StatusUnborn},
		{name: "AtBirth", state: State{AttrBirthTick: Number(10)}, at: 10, want: StatusAlive},
		{name: "BeforeDeath", state: State{AttrDeathTick: Number(10)}, at: 9, want: StatusAlive},
		{name: "AtDeath", state: State{AttrDeathTick: Number(10)}, at: 10, want: StatusDead},
		{
			name:  "BirthWinsOverDeath",
			state: State{AttrBirthTick: Number(20), AttrDeathTick: Number(10)},
			at:    15,
			want:  StatusUnborn,
		},
		{
			name:  "ExplicitDead",
			state: State{AttrStatus: String("Dead"), AttrBirthTick: Number(20)},
			at:    15,
			want:  StatusDead,
		},
		{
			name:  "ExplicitAlive",
			state: State{AttrStatus: String("alive"), AttrDeathTick: Number(10)},
			at:    15,
			want:  StatusAlive,
		},
		{
			name:  "UnknownExplicitIsIgnored",
			state: State{AttrStatus: String("sleeping"), AttrDeathTick: Number(10)},
			at:    15,
			want:  StatusDead,
		},
		{
			name:  "RetiredWinsOverEverything",
			state: State{AttrRetired: Bool(true), AttrStatus: String("alive")},
			want:  StatusRetired,
		},
		{
			name:  "NotRetired",
			state: State{AttrRetired: Bool(false)},
			want:  StatusAlive,
		},
		{
			name:  "WrongKindsAreIgnored",
			state: State{AttrBirthTick: String("soon"), AttrRetired: String("yes")},
			want:  StatusAlive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.state, tt.at); got != tt.want {
				t.Errorf("StatusOf(%v, %v) = %v, want %v", tt.state, tt.at, got, tt.want)
			}
		})
	}
}
