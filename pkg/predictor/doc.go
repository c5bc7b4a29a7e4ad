// Package predictor predicts football match outcomes from a frozen set of
// trained artifacts: a result classifier and two score regressors over a
// one-hot encoding of teams, tournament, city and country.
//
// Quick start:
//
//	p, err := predictor.New(predictor.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	pred, _ := p.Predict(predictor.Match{HomeTeam: "France", AwayTeam: "Italy"})
//	fmt.Println(pred.Winner, pred.HomeScore, pred.AwayScore)
//
// A Predictor is safe for concurrent use. Create once, reuse across requests.
package predictor
