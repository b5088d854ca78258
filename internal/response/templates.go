package response

import (
	"fmt"
	"strings"
)

const (
	// TaterTotsMessage is sent on a roll of 98 or 99.
	TaterTotsMessage = "I really like tater tots."
	// BunnyMessage is sent on a roll of exactly 100.
	BunnyMessage = "I am a bunny!"
)

func NothingFoundMessage(user string) string {
	return fmt.Sprintf("Sorry, %s, I couldn't find anything in that image!", user)
}

func ErrorMessage(user string) string {
	return fmt.Sprintf("Oops, something went wrong with your inventory analysis, %s!", user)
}

func stepItUpMessage(user string) string {
	return fmt.Sprintf("Come on, %s, step it up!", user)
}

// SnarkyCandidates builds the snarky lines for user. Each missing-item line
// draws its own item from missing; an empty least skips the least-item line.
// The result is empty when neither missing nor least is available.
func SnarkyCandidates(user string, missing []string, least string, rng Rand) []string {
	var lines []string
	if len(missing) > 0 {
		choose := func() string { return missing[rng.IntN(len(missing))] }
		lines = append(lines,
			fmt.Sprintf("Uh, %s, where’s the %s? We kind of need that too!", user, choose()),
			fmt.Sprintf("%s, if you dont start bringing back %s you're gonna have to live outside!", user, choose()),
			fmt.Sprintf("%s, Das ist inakzeptabel, wir brauchen mehr %s!", user, choose()),
			fmt.Sprintf("%s, Im gonna tell your mom that you aren't bringing back enough %s!", user, choose()),
		)
	}
	if least != "" {
		lines = append(lines, fmt.Sprintf("But seriously, %s, only a few %s? Bold move!", user, least))
	}
	return lines
}

// ComplimentCandidates builds the compliment lines for the top items. Two
// more lines unlock with a second top item and two more with a third.
func ComplimentCandidates(user string, top []string) []string {
	if len(top) == 0 {
		return nil
	}
	first := top[0]
	lines := []string{
		fmt.Sprintf("Wow, %s! You brought in so much %s!", user, first),
		fmt.Sprintf("Looks like %s is your specialty, %s!", first, user),
		fmt.Sprintf("You’ve got %s for days, %s!", first, user),
		fmt.Sprintf("Stocking up on %s like a pro, %s!", first, user),
		fmt.Sprintf("Nice job bring back so much %s, you wont have to live outside this wipe, %s!", first, user),
		fmt.Sprintf("Thats enough %s to fill a barrel, nice job %s!", first, user),
		fmt.Sprintf("This guy brought back enough %s that we dont have to beat em! Well done, %s!", first, user),
		fmt.Sprintf("Any more %s and we would be out of box space! Well done, %s!", first, user),
		fmt.Sprintf("Make sure to put all of those %s in the right box! Good job %s!", first, user),
		fmt.Sprintf("Wow, das ist eine Menge %s, gut gemacht, %s!", first, user),
	}
	if len(top) > 1 {
		lines = append(lines,
			fmt.Sprintf("Wow, %s, you’re really stocking up on %s and %s!", user, first, top[1]),
			fmt.Sprintf("%s, you’re practically swimming in %s and %s!", user, first, top[1]),
		)
	}
	if len(top) > 2 {
		joined := strings.Join(top[:3], ", ")
		lines = append(lines,
			fmt.Sprintf("You’re killing it with %s, %s!", joined, user),
			fmt.Sprintf("Incredible haul of %s, %s!", joined, user),
		)
	}
	return lines
}
